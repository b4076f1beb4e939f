package urls

import (
	"context"
	"errors"
	"fmt"
)

// URL represents a document URL discovered by a source (file, sitemap, feed, index page)
type URL struct {
	Location string // URL of the instruction document
	Title    string // Title, when the source provides one
}

// Source lists document URLs found at a location
type Source interface {
	Fetch(ctx context.Context, location string) ([]URL, error)
}

// ErrNoURLs is returned when no source yields any URL
var ErrNoURLs = errors.New("no URLs found")

// Resolve tries sources in order and returns the locations from the first one that
// yields URLs, after applying filters
func Resolve(ctx context.Context, sources []Source, location string, filters ...UrlFilter) ([]string, error) {
	var lastErr error
	for _, source := range sources {
		found, err := source.Fetch(ctx, location)
		if err != nil {
			lastErr = err
			continue
		}
		if len(found) == 0 {
			continue
		}

		locations := make([]string, 0, len(found))
		for _, u := range found {
			if u.Location != "" {
				locations = append(locations, u.Location)
			}
		}
		return FilterURLs(ctx, locations, filters...)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all sources failed, last error: %w", lastErr)
	}
	return nil, ErrNoURLs
}
