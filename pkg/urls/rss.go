package urls

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// RSSParser lists document links published in an RSS/Atom feed
type RSSParser struct {
	feedParser *gofeed.Parser
}

// NewRSSParser creates a new RSS parser
func NewRSSParser() *RSSParser {
	return &RSSParser{
		feedParser: gofeed.NewParser(),
	}
}

// Fetch fetches and parses the feed at feedURL
func (p *RSSParser) Fetch(ctx context.Context, feedURL string) ([]URL, error) {
	feed, err := p.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}

	urls := make([]URL, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link != "" {
			urls = append(urls, URL{
				Location: item.Link,
				Title:    item.Title,
			})
		}
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no valid URLs found in feed items")
	}

	return urls, nil
}
