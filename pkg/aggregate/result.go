package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Failure kinds. Every error carried by a Result matches exactly one of them with errors.Is.
var (
	ErrNetwork    = errors.New("network failure")
	ErrHTTPStatus = errors.New("http status failure")
	ErrParse      = errors.New("parse failure")
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Is makes errors.Is(err, ErrHTTPStatus) hold for any StatusError
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// Result is the outcome of fetching one URL: either a parsed document or the reason it failed
type Result struct {
	URL      string
	Document json.RawMessage
	Err      error
}

// OK reports whether the URL produced a document
func (r Result) OK() bool {
	return r.Err == nil
}

// Kind names the failure class ("network", "http_status", "parse"), or "" on success
func (r Result) Kind() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrHTTPStatus):
		return "http_status"
	case errors.Is(r.Err, ErrParse):
		return "parse"
	default:
		return "network"
	}
}

// Records returns the instruction records a successful document contributes:
// all elements of an array, the object itself, or nothing for any other JSON type
func (r Result) Records() []json.RawMessage {
	if !r.OK() {
		return nil
	}
	switch documentKind(r.Document) {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(r.Document, &elems); err != nil {
			return nil
		}
		return elems
	case '{':
		return []json.RawMessage{r.Document}
	default:
		return nil
	}
}

// Count returns the number of elements when the document is an array, 0 otherwise
func (r Result) Count() int {
	if !r.OK() || documentKind(r.Document) != '[' {
		return 0
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(r.Document, &elems); err != nil {
		return 0
	}
	return len(elems)
}

// documentKind returns the first significant byte of a JSON value
func documentKind(doc json.RawMessage) byte {
	for _, b := range doc {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b
		}
	}
	return 0
}

// MarshalJSON reports the outcome without the document body
func (r Result) MarshalJSON() ([]byte, error) {
	view := struct {
		URL   string `json:"url"`
		OK    bool   `json:"ok"`
		Count int    `json:"count"`
		Error string `json:"error,omitempty"`
		Kind  string `json:"kind,omitempty"`
	}{
		URL:   r.URL,
		OK:    r.OK(),
		Count: r.Count(),
		Kind:  r.Kind(),
	}
	if r.Err != nil {
		view.Error = r.Err.Error()
	}
	return json.Marshal(view)
}
