package urls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveFeed(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSParser_Fetch_RSS(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Instrukcje</title>
	<link>https://example.com/</link>
	<item>
		<title>Ruch i przewozy kolejowe</title>
		<link>https://example.com/currentFiles/ruch-i-przewozy-kolejowe.json</link>
	</item>
	<item>
		<title>Automatyka i telekomunikacja</title>
		<link>https://example.com/currentFiles/automatyka-i-telekomunikacja.json</link>
	</item>
	<item>
		<title>No link</title>
	</item>
</channel>
</rss>`)

	urls, err := NewRSSParser().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to parse RSS feed: %v", err)
	}

	if len(urls) != 2 {
		t.Fatalf("Expected 2 URLs, got %d", len(urls))
	}
	if urls[0].Location != "https://example.com/currentFiles/ruch-i-przewozy-kolejowe.json" {
		t.Errorf("Unexpected first location '%s'", urls[0].Location)
	}
	if urls[1].Title != "Automatyka i telekomunikacja" {
		t.Errorf("Expected title 'Automatyka i telekomunikacja', got '%s'", urls[1].Title)
	}
}

func TestRSSParser_Fetch_Atom(t *testing.T) {
	server := serveFeed(t, "application/atom+xml", `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Instrukcje</title>
	<id>urn:instrukcje</id>
	<updated>2025-05-20T00:00:00Z</updated>
	<entry>
		<title>Ruch i przewozy kolejowe</title>
		<id>urn:ruch</id>
		<updated>2025-05-20T00:00:00Z</updated>
		<link href="https://example.com/allFiles/ruch-i-przewozy-kolejowe.json"/>
	</entry>
</feed>`)

	urls, err := NewRSSParser().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to parse Atom feed: %v", err)
	}

	if len(urls) != 1 {
		t.Fatalf("Expected 1 URL, got %d", len(urls))
	}
	if urls[0].Location != "https://example.com/allFiles/ruch-i-przewozy-kolejowe.json" {
		t.Errorf("Unexpected location '%s'", urls[0].Location)
	}
}

func TestRSSParser_Fetch_EmptyFeed(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Empty</title></channel></rss>`)

	if _, err := NewRSSParser().Fetch(context.Background(), server.URL); err == nil {
		t.Error("Expected error for feed without items, got nil")
	}
}

func TestRSSParser_Fetch_InvalidURL(t *testing.T) {
	if _, err := NewRSSParser().Fetch(context.Background(), "http://127.0.0.1:0/feed.xml"); err == nil {
		t.Error("Expected error for unreachable feed, got nil")
	}
}
