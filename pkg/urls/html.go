package urls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"plk-instructions/pkg/httpclient"
)

// LinkExtractor extracts URLs from an HTML page. base is the page's own URL.
type LinkExtractor func(base *neturl.URL, html string) ([]URL, error)

// IndexFetcher fetches an HTML index page (for example a directory listing of
// published documents) and extracts the links it points to
type IndexFetcher struct {
	client    *httpclient.HTTPClient
	extractor LinkExtractor
}

// NewIndexFetcher creates an index fetcher using ExtractLinks and a browser client
func NewIndexFetcher() *IndexFetcher {
	return NewIndexFetcherWithExtractor(ExtractLinks, httpclient.BrowserClient)
}

// NewIndexFetcherWithExtractor creates an index fetcher with a custom extractor and client type
func NewIndexFetcherWithExtractor(extractor LinkExtractor, clientType httpclient.ClientType) *IndexFetcher {
	return &IndexFetcher{
		client:    httpclient.NewClient(clientType),
		extractor: extractor,
	}
}

// Fetch fetches the page at pageURL and extracts its links
func (f *IndexFetcher) Fetch(ctx context.Context, pageURL string) ([]URL, error) {
	base, err := neturl.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page URL: %w", err)
	}

	html, err := f.fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTML: %w", err)
	}

	if f.extractor == nil {
		return nil, fmt.Errorf("extractor function is not set")
	}

	urls, err := f.extractor(base, html)
	if err != nil {
		return nil, fmt.Errorf("failed to extract URLs: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found in HTML")
	}

	return urls, nil
}

func (f *IndexFetcher) fetchHTML(ctx context.Context, url string) (string, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// ExtractLinks returns every a[href] on the page resolved against base, in
// document order and without duplicates. Fragment-only and javascript: links
// are skipped.
func ExtractLinks(base *neturl.URL, html string) ([]URL, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	seen := make(map[string]bool)
	var urls []URL

	doc.Find("a[href]").Each(func(i int, link *goquery.Selection) {
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		ref, err := neturl.Parse(href)
		if err != nil {
			return
		}
		location := base.ResolveReference(ref).String()
		if seen[location] {
			return
		}
		seen[location] = true

		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = link.AttrOr("title", "")
		}

		urls = append(urls, URL{
			Location: location,
			Title:    title,
		})
	})

	return urls, nil
}
