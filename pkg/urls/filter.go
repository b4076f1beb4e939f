package urls

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// UrlFilter defines the interface for URL filtering
type UrlFilter interface {
	ShouldKeep(ctx context.Context, url string) (bool, error)
}

// FilterURLs applies all filters to a list of URLs, keeping the input order
func FilterURLs(ctx context.Context, urls []string, filters ...UrlFilter) ([]string, error) {
	filtered := make([]string, 0, len(urls))

	for _, urlStr := range urls {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, urlStr)
			if err != nil {
				return nil, fmt.Errorf("filter error for URL %s: %w", urlStr, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, urlStr)
		}
	}

	return filtered, nil
}

// BaseURLFilter filters out base/root URLs
type BaseURLFilter struct{}

// NewBaseURLFilter creates a new base URL filter
func NewBaseURLFilter() *BaseURLFilter {
	return &BaseURLFilter{}
}

// ShouldKeep returns false if URL is a base/root URL
func (f *BaseURLFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		// If we can't parse it, don't filter it out (let it fail later if needed)
		return true, nil
	}

	path := strings.Trim(parsed.Path, "/")
	return path != "", nil
}

// AlreadySeenFilter filters out URLs that already exist in the provided set
type AlreadySeenFilter struct {
	seen map[string]bool
}

// NewAlreadySeenFilter creates a new already-seen filter
func NewAlreadySeenFilter(seen map[string]bool) *AlreadySeenFilter {
	return &AlreadySeenFilter{
		seen: seen,
	}
}

// ShouldKeep returns false if URL is already in the seen set
func (f *AlreadySeenFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	return !f.seen[urlStr], nil
}

// SuffixFilter keeps URLs whose path ends with the given suffix (e.g. ".json")
type SuffixFilter struct {
	suffix string
}

// NewSuffixFilter creates a new suffix filter
func NewSuffixFilter(suffix string) *SuffixFilter {
	return &SuffixFilter{
		suffix: strings.ToLower(suffix),
	}
}

// ShouldKeep returns true if the URL path ends with the suffix
func (f *SuffixFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	path := urlStr
	if parsed, err := url.Parse(urlStr); err == nil {
		path = parsed.Path
	}
	return strings.HasSuffix(strings.ToLower(path), f.suffix), nil
}
