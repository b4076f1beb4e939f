package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format of instruction validity dates
const DateLayout = "2006-01-02"

// Date is a calendar day. The zero value means "no date" and encodes as null.
type Date struct {
	time.Time
}

// NewDate returns the calendar day of t
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON encodes the date as "YYYY-MM-DD" or null
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = Date{t}
	return nil
}

// FileVersion is one published edition of an instruction document
type FileVersion struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	ResourceURL string `json:"resource_url"`
	WCAG        bool   `json:"wcag"`
	FromDate    Date   `json:"from_date"`
	ToDate      Date   `json:"to_date"`
}

// ActiveOn reports whether the version is in force on day
func (v FileVersion) ActiveOn(day Date) bool {
	if !v.ToDate.IsZero() && v.ToDate.Before(day.Time) {
		return false
	}
	if !v.FromDate.IsZero() && v.FromDate.After(day.Time) {
		return false
	}
	return true
}

// File groups all versions published under one instruction number (e.g. "Ie-1")
type File struct {
	Number   string        `json:"number"`
	Versions []FileVersion `json:"versions"`
}
