// Package aggregate fetches instruction documents from a list of URLs and merges
// them into a single ordered record list or into per-document statistics.
//
// URLs are processed strictly in order, one request at a time. A URL that
// fails (network error, non-2xx status, malformed JSON) contributes nothing to
// Instructions or Stats; FetchAll reports the reason instead.
package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"plk-instructions/pkg/domain"
	"plk-instructions/pkg/httpclient"
)

// utf8BOM is dropped from the start of a body before parsing
var utf8BOM = []byte("\xef\xbb\xbf")

// Aggregator fetches and merges instruction documents
type Aggregator struct {
	client  *httpclient.HTTPClient
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClient sets the HTTP client used for every fetch
func WithClient(client *httpclient.HTTPClient) Option {
	return func(a *Aggregator) {
		a.client = client
	}
}

// WithLogger makes skipped URLs visible at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// WithMetrics records fetch outcomes
func WithMetrics(metrics *Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = metrics
	}
}

// New creates an aggregator. By default it uses a JSON client without a
// timeout and logs nothing.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		client: httpclient.NewClient(httpclient.JSONClient),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch retrieves and parses a single document
func (a *Aggregator) Fetch(ctx context.Context, url string) Result {
	start := time.Now()
	doc, err := a.fetchDocument(ctx, url)
	res := Result{URL: url, Document: doc, Err: err}
	a.metrics.observe(res, time.Since(start))

	if err != nil {
		a.logger.Debug("Aggregator: skipping URL",
			zap.String("url", url),
			zap.String("kind", res.Kind()),
			zap.Error(err))
	}
	return res
}

// FetchAll fetches every URL in order and returns one Result per processed URL.
// Processing stops early, without a Result for the remaining URLs, once ctx is done.
func (a *Aggregator) FetchAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, 0, len(urls))
	for _, url := range urls {
		if ctx.Err() != nil {
			a.logger.Debug("Aggregator: context done, stopping",
				zap.Int("processed", len(results)),
				zap.Int("total", len(urls)))
			break
		}
		results = append(results, a.Fetch(ctx, url))
	}
	return results
}

// Instructions returns the records of all reachable documents in URL order.
// Arrays are flattened one level, objects are appended as one record,
// any other JSON value is dropped. Failed URLs are skipped.
func (a *Aggregator) Instructions(ctx context.Context, urls []string) []json.RawMessage {
	all := make([]json.RawMessage, 0)
	for _, res := range a.FetchAll(ctx, urls) {
		all = append(all, res.Records()...)
	}
	a.metrics.addRecords(len(all))
	return all
}

// Stats returns one entry per successfully fetched URL
func (a *Aggregator) Stats(ctx context.Context, urls []string) []domain.StatEntry {
	stats := make([]domain.StatEntry, 0, len(urls))
	for _, res := range a.FetchAll(ctx, urls) {
		if !res.OK() {
			continue
		}
		stats = append(stats, domain.StatEntry{
			File:       FileName(res.URL),
			Count:      res.Count(),
			LastUpdate: nil,
		})
	}
	return stats
}

// FetchInstructions runs Instructions with a default aggregator
func FetchInstructions(ctx context.Context, urls []string) []json.RawMessage {
	return New().Instructions(ctx, urls)
}

// FetchStats runs Stats with a default aggregator
func FetchStats(ctx context.Context, urls []string) []domain.StatEntry {
	return New().Stats(ctx, urls)
}

// FileName returns the text after the last "/" of url, query string included
func FileName(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// fetchDocument performs the GET and validates the body as JSON
func (a *Aggregator) fetchDocument(ctx context.Context, url string) (json.RawMessage, error) {
	resp, err := a.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrNetwork, err)
	}

	var doc json.RawMessage
	if err := json.Unmarshal(bytes.TrimPrefix(body, utf8BOM), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return doc, nil
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
