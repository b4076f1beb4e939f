package domain

import "time"

// StatEntry summarises one instruction document
type StatEntry struct {
	// File is the last path segment of the document URL
	File string `json:"file"`

	// Count is the number of records when the document is an array, 0 otherwise
	Count int `json:"count"`

	// LastUpdate is never populated and always encodes as null
	LastUpdate *time.Time `json:"lastUpdate"`
}
