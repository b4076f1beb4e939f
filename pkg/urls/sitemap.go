package urls

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"plk-instructions/pkg/httpclient"
)

// SitemapParser lists document URLs from a sitemap or sitemap index
type SitemapParser struct {
	client *httpclient.HTTPClient
	logger *zap.Logger
}

// NewSitemapParser creates a new sitemap parser
func NewSitemapParser() *SitemapParser {
	return &SitemapParser{
		client: httpclient.NewClient(httpclient.BrowserClient),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used to report skipped child sitemaps
func (p *SitemapParser) WithLogger(logger *zap.Logger) *SitemapParser {
	p.logger = logger
	return p
}

// Fetch fetches and parses the sitemap at url. A sitemap index is followed one
// child sitemap at a time and the entries are combined.
func (p *SitemapParser) Fetch(ctx context.Context, url string) ([]URL, error) {
	resp, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Read first few bytes to detect sitemap type
	peekBuffer := make([]byte, 512)
	n, err := io.ReadFull(resp.Body, peekBuffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read sitemap: %w", err)
	}

	content := string(peekBuffer[:n])
	reader := io.MultiReader(strings.NewReader(content), resp.Body)

	if !strings.Contains(content, "sitemapindex") {
		return p.parseSitemap(reader)
	}

	sitemapURLs, err := p.parseSitemapIndex(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap index: %w", err)
	}

	if len(sitemapURLs) == 0 {
		return nil, fmt.Errorf("sitemap index contained no sitemap URLs")
	}

	var allURLs []URL
	for _, sitemapURL := range sitemapURLs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		urls, err := p.Fetch(ctx, sitemapURL)
		if err != nil {
			p.logger.Warn("Sitemap: skipping child sitemap",
				zap.String("url", sitemapURL),
				zap.Error(err))
			continue
		}
		allURLs = append(allURLs, urls...)
	}

	if len(allURLs) == 0 {
		return nil, fmt.Errorf("no entries found in any sitemap from index")
	}

	return allURLs, nil
}

// parseSitemapIndex parses a sitemap index file
func (p *SitemapParser) parseSitemapIndex(reader io.Reader) ([]string, error) {
	var index sitemapIndex
	decoder := xml.NewDecoder(reader)

	if err := decoder.Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap index XML: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, ref := range index.Sitemaps {
		if loc := strings.TrimSpace(ref.Location); loc != "" {
			urls = append(urls, loc)
		}
	}

	return urls, nil
}

// parseSitemap parses a regular sitemap XML
func (p *SitemapParser) parseSitemap(reader io.Reader) ([]URL, error) {
	var set urlSet
	decoder := xml.NewDecoder(reader)

	if err := decoder.Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap XML: %w", err)
	}

	urls := make([]URL, 0, len(set.URLs))
	for _, entry := range set.URLs {
		if loc := strings.TrimSpace(entry.Location); loc != "" {
			urls = append(urls, URL{Location: loc})
		}
	}

	return urls, nil
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Location string `xml:"loc"`
}
