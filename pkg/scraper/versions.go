package scraper

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"plk-instructions/pkg/domain"
)

// dateLayout is the day format used on the listing pages ("20.05.2025")
const dateLayout = "02.01.2006"

var (
	fromDatePattern = regexp.MustCompile(`od (\d{2}\.\d{2}\.\d{4})`)
	toDatePattern   = regexp.MustCompile(`do (\d{2}\.\d{2}\.\d{4})`)
	numberPattern   = regexp.MustCompile(`(?m)(I[r|e]-[\p{L}\p{N}_]*)($|\s)`)
)

// ParseVersions parses version links such as
//
//	<a href="/files/.../05_Instrukcja_Ie-1-od_2025-05-20_WCAG.pdf" class="file-list__item__link">
//	  Instrukcja sygnalizacji <strong>Ie-1 - wersja dostosowana do zasad WCAG -</strong> obowiązuje od 20.05.2025 r.
//	</a>
func ParseVersions(links []*goquery.Selection) []domain.FileVersion {
	versions := make([]domain.FileVersion, 0, len(links))
	for _, link := range links {
		versions = append(versions, parseVersion(link))
	}
	return versions
}

// parseVersion reads the link's direct children in order: the leading text is
// the document name, later text carries the validity dates and nested elements
// carry the instruction number and the WCAG marker
func parseVersion(link *goquery.Selection) domain.FileVersion {
	href, _ := link.Attr("href")
	version := domain.FileVersion{ResourceURL: href}

	if link.Length() == 0 {
		return version
	}

	index := 0
	for c := link.Nodes[0].FirstChild; c != nil; c, index = c.NextSibling, index+1 {
		switch c.Type {
		case html.TextNode, html.CommentNode:
			if index == 0 {
				version.Name = strings.TrimSpace(c.Data)
				continue
			}
			if d, ok := matchDate(fromDatePattern, c.Data); ok {
				version.FromDate = d
			}
			if d, ok := matchDate(toDatePattern, c.Data); ok {
				version.ToDate = d
			}

		case html.ElementNode:
			var b strings.Builder
			writeStrippedText(&b, c)
			text := b.String()
			if m := numberPattern.FindStringSubmatch(text); m != nil {
				version.Number = m[1]
			}
			if strings.Contains(text, "WCAG") {
				version.WCAG = true
			}
		}
	}

	return version
}

// matchDate finds pattern in text and parses its first group as a day.
// Impossible dates such as 31.02.2025 are ignored.
func matchDate(pattern *regexp.Regexp, text string) (domain.Date, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return domain.Date{}, false
	}
	t, err := time.Parse(dateLayout, m[1])
	if err != nil {
		return domain.Date{}, false
	}
	return domain.NewDate(t), true
}
