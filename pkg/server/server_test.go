package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"plk-instructions/pkg/aggregate"
)

func newDocumentServer(t *testing.T) *httptest.Server {
	t.Helper()
	docs := map[string]string{
		"/a.json":   `[{"x":1},{"x":2}]`,
		"/y.json":   `{"y":5}`,
		"/bad.json": `{`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func query(urls ...string) string {
	v := url.Values{}
	for _, u := range urls {
		v.Add("url", u)
	}
	return v.Encode()
}

func TestHealth(t *testing.T) {
	rec := get(t, New(Config{}), "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestInstructions(t *testing.T) {
	docs := newDocumentServer(t)
	srv := New(Config{AllowedPrefixes: []string{docs.URL + "/"}})

	rec := get(t, srv, "/api/instructions?"+query(docs.URL+"/a.json", docs.URL+"/b.json", docs.URL+"/y.json"))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got '%s'", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `[{"x":1},{"x":2},{"y":5}]` {
		t.Errorf("Expected [{\"x\":1},{\"x\":2},{\"y\":5}], got %s", got)
	}
}

func TestInstructions_EmptyIsArray(t *testing.T) {
	rec := get(t, New(Config{}), "/api/instructions")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("Expected [], got %s", got)
	}
}

func TestStats_DefaultURLs(t *testing.T) {
	docs := newDocumentServer(t)
	srv := New(Config{DefaultURLs: []string{docs.URL + "/a.json", docs.URL + "/b.json"}})

	rec := get(t, srv, "/api/stats")
	expected := `[{"file":"a.json","count":2,"lastUpdate":null}]`
	if got := strings.TrimSpace(rec.Body.String()); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}

func TestResults(t *testing.T) {
	docs := newDocumentServer(t)
	srv := New(Config{AllowedPrefixes: []string{docs.URL + "/"}})

	rec := get(t, srv, "/api/results?"+query(docs.URL+"/a.json", docs.URL+"/b.json", docs.URL+"/bad.json"))

	var views []struct {
		URL   string `json:"url"`
		OK    bool   `json:"ok"`
		Count int    `json:"count"`
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("Failed to decode results: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(views))
	}
	if !views[0].OK || views[0].Count != 2 || views[0].Error != "" {
		t.Errorf("Expected first result ok with 2 records, got %+v", views[0])
	}
	if views[1].OK || views[1].Kind != "http_status" || views[1].Error == "" {
		t.Errorf("Expected http_status failure, got %+v", views[1])
	}
	if views[2].Kind != "parse" {
		t.Errorf("Expected parse failure, got %+v", views[2])
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "currentFiles"), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "currentFiles", "ruch.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	srv := New(Config{FilesDir: dir})

	rec := get(t, srv, "/files/currentFiles/ruch.json")
	if rec.Code != http.StatusOK || rec.Body.String() != "[]" {
		t.Errorf("Expected 200 with [], got %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(t, srv, "/files/currentFiles/missing.json"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	docs := newDocumentServer(t)
	reg := prometheus.NewRegistry()
	srv := New(Config{
		Aggregator:      aggregate.New(aggregate.WithMetrics(aggregate.NewMetrics(reg))),
		Gatherer:        reg,
		AllowedPrefixes: []string{docs.URL},
	})

	get(t, srv, "/api/instructions?"+query(docs.URL+"/a.json"))

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `instructions_fetch_total{outcome="ok"} 1`) {
		t.Errorf("Expected fetch counter in metrics output, got:\n%s", rec.Body.String())
	}
}

func TestRequestURLs_RejectsUnlistedURL(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[{"secret":"internal-only"}]`))
	}))
	defer internal.Close()

	docs := newDocumentServer(t)
	srv := New(Config{
		DefaultURLs:     []string{docs.URL + "/a.json"},
		AllowedPrefixes: []string{"https://docs.example.com/data/"},
	})

	for _, path := range []string{"/api/instructions", "/api/stats", "/api/results"} {
		rec := get(t, srv, path+"?"+query(docs.URL+"/a.json", internal.URL+"/admin"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret") {
			t.Errorf("%s: expected internal body not to be returned, got %s", path, rec.Body.String())
		}
	}
	if got := hits.Load(); got != 0 {
		t.Errorf("Expected no requests to the unlisted server, got %d", got)
	}
}

func TestRequestURLs_DefaultsAndPrefixes(t *testing.T) {
	srv := New(Config{
		DefaultURLs:     []string{"https://h/a.json"},
		AllowedPrefixes: []string{"https://docs.example.com/data/", "://bad"},
	})

	tests := map[string]bool{
		"https://h/a.json":                        true,
		"https://h/b.json":                        false,
		"https://docs.example.com/data/x.json":    true,
		"https://DOCS.example.com/data/x.json":    true,
		"http://docs.example.com/data/x.json":     false,
		"https://docs.example.com/other/x.json":   false,
		"https://docs.example.com/data/../admin":  false,
		"https://docs.example.com.evil/data/x":    false,
		"https://user@docs.example.com/data/x":    false,
		"https://docs.example.com:8443/data/x":    false,
		"https://169.254.169.254/latest/metadata": false,
	}
	for raw, want := range tests {
		if got := srv.isAllowed(raw); got != want {
			t.Errorf("isAllowed(%q): expected %v, got %v", raw, want, got)
		}
	}
	if len(srv.allowed) != 1 {
		t.Errorf("Expected invalid prefix to be ignored, got %d prefixes", len(srv.allowed))
	}
}

func TestFetchTimeout_BoundsSlowDocument(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer slow.Close()
	defer close(release)

	srv := New(Config{
		AllowedPrefixes: []string{slow.URL},
		FetchTimeout:    50 * time.Millisecond,
	})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- get(t, srv, "/api/results?"+query(slow.URL+"/hang.json"))
	}()

	select {
	case rec := <-done:
		var views []struct {
			OK   bool   `json:"ok"`
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
			t.Fatalf("Failed to decode results: %v", err)
		}
		if len(views) != 1 || views[0].OK || views[0].Kind != "network" {
			t.Errorf("Expected one network failure, got %+v", views)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected request to finish after the fetch timeout")
	}
}
