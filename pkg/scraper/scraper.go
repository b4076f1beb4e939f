// Package scraper turns railway instruction listing pages into instruction files.
//
// A listing page holds one "uploads" block per instruction. Each block has an
// <h3> header ("Ie-1 - Instrukcja sygnalizacji") and a list of links, one per
// published version of the document.
package scraper

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"plk-instructions/pkg/content"
	"plk-instructions/pkg/domain"
	"plk-instructions/pkg/httpclient"
)

const (
	uploadSelector   = "div.frame-type-uploads"
	fileItemSelector = "div.file-list__item"
	fileLinkSelector = "a.file-list__item__link"
	headerSeparator  = " - "
)

// Page is a scraped listing page
type Page struct {
	Name  string
	URL   string
	Title string
	Files []domain.File
}

// Scraper fetches listing pages and extracts instruction files from them
type Scraper struct {
	client *httpclient.HTTPClient
	logger *zap.Logger
}

// New creates a scraper. A nil client gets a browser-like client.
func New(client *httpclient.HTTPClient, logger *zap.Logger) *Scraper {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client: client,
		logger: logger,
	}
}

// Scrape fetches a listing page and returns its files with duplicates merged
func (s *Scraper) Scrape(ctx context.Context, name, pageURL string) (*Page, error) {
	htmlContent, err := s.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	files, err := ProcessHTML(htmlContent)
	if err != nil {
		return nil, fmt.Errorf("failed to process page: %w", err)
	}

	page := &Page{
		Name:  name,
		URL:   pageURL,
		Title: content.TitleOr(htmlContent, name),
		Files: files,
	}

	s.logger.Info("Scraper: processed page",
		zap.String("page", name),
		zap.String("title", page.Title),
		zap.Int("files", len(files)))
	return page, nil
}

// FetchPage fetches the HTML of a listing page
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (string, error) {
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// ProcessHTML extracts instruction files from a listing page.
// Blocks without a header are skipped; files sharing a number are merged.
func ProcessHTML(htmlContent string) ([]domain.File, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var files []domain.File
	doc.Find(uploadSelector).Each(func(_ int, upload *goquery.Selection) {
		number := numberHeader(upload)
		if number == "" {
			return
		}

		files = append(files, domain.File{
			Number:   number,
			Versions: ParseVersions(fileLinks(upload)),
		})
	})

	return MergeDuplicates(files), nil
}

// numberHeader returns the instruction number from the block header,
// i.e. the header text up to the first " - "
func numberHeader(upload *goquery.Selection) string {
	header := upload.Find("h3").First()
	if header.Length() == 0 {
		return ""
	}
	number, _, _ := strings.Cut(strippedText(header), headerSeparator)
	return number
}

// fileLinks returns the first version link of every file list item
func fileLinks(upload *goquery.Selection) []*goquery.Selection {
	var links []*goquery.Selection
	upload.Find(fileItemSelector).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(fileLinkSelector).First()
		if link.Length() > 0 {
			links = append(links, link)
		}
	})
	return links
}

// strippedText concatenates every descendant text node of sel, each trimmed of
// surrounding whitespace, with no separator
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeStrippedText(&b, n)
	}
	return b.String()
}

func writeStrippedText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeStrippedText(b, c)
	}
}
