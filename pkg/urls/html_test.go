package urls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

const listingPage = `<html><body>
<h1>Index of /currentFiles</h1>
<a href="../">Parent</a>
<a href="#top">Top</a>
<a href="ruch-i-przewozy-kolejowe.json">ruch-i-przewozy-kolejowe.json</a>
<a href="/currentFiles/automatyka-i-telekomunikacja.json" title="AiT"></a>
<a href="ruch-i-przewozy-kolejowe.json">duplicate</a>
<a href="javascript:void(0)">noop</a>
</body></html>`

func TestExtractLinks(t *testing.T) {
	base, _ := url.Parse("https://example.com/currentFiles/")

	urls, err := ExtractLinks(base, listingPage)
	if err != nil {
		t.Fatalf("ExtractLinks failed: %v", err)
	}

	if len(urls) != 3 {
		t.Fatalf("Expected 3 URLs, got %d: %+v", len(urls), urls)
	}
	if urls[0].Location != "https://example.com/" {
		t.Errorf("Expected parent link resolved, got '%s'", urls[0].Location)
	}
	if urls[1].Location != "https://example.com/currentFiles/ruch-i-przewozy-kolejowe.json" {
		t.Errorf("Unexpected second location '%s'", urls[1].Location)
	}
	if urls[2].Title != "AiT" {
		t.Errorf("Expected title attribute fallback 'AiT', got '%s'", urls[2].Title)
	}
}

func TestResolve_IndexWithFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	}))
	defer server.Close()

	seen := map[string]bool{server.URL + "/currentFiles/automatyka-i-telekomunikacja.json": true}
	locations, err := Resolve(context.Background(),
		[]Source{NewSitemapParser(), NewIndexFetcher()},
		server.URL+"/currentFiles/",
		NewSuffixFilter(".JSON"),
		NewAlreadySeenFilter(seen),
	)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(locations) != 1 || locations[0] != server.URL+"/currentFiles/ruch-i-przewozy-kolejowe.json" {
		t.Errorf("Expected only the unseen JSON document, got %v", locations)
	}
}

func TestResolve_AllSourcesFail(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Resolve(context.Background(), []Source{NewIndexFetcher()}, server.URL)
	if err == nil {
		t.Fatal("Expected error when every source fails, got nil")
	}
}

func TestBaseURLFilter(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":        false,
		"https://example.com/":       false,
		"https://example.com/a.json": true,
		"https://example.com/dir/":   true,
	}
	f := NewBaseURLFilter()
	for u, want := range tests {
		if got, _ := f.ShouldKeep(context.Background(), u); got != want {
			t.Errorf("ShouldKeep(%q): expected %v, got %v", u, want, got)
		}
	}
}
