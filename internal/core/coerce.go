// Package core holds the domain entities shared by the analytics engine
// and the outbound adapters.
//
// This file contains the loosely-typed value kinds the data-access layer
// feeds us: amounts that may arrive as numbers or numeric strings, and
// ISO-8601 date strings. Malformed values coerce to their zero value
// instead of failing the whole row.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Amount is a monetary or numeric field tolerant of sloppy upstream data.
// JSON numbers, numeric strings ("123.45", "123,45") and null all decode;
// anything else, and any non-finite result, coerces to 0.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount(CoerceFloat(string(bytes.TrimSpace(data))))
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	v := float64(a)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return json.Marshal(v)
}

// CoerceFloat parses a raw JSON token or plain string into a finite
// float64, returning 0 for anything that does not parse. It accepts both
// dot and comma decimal separators, mirroring how amounts are typed in
// spreadsheets and legacy exports.
func CoerceFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Comma decimals only when no dot is present, so "1.234,56" stays out.
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Date wraps time.Time with ISO-8601 decoding tolerant of both plain
// dates and full timestamps. Invalid input decodes as the zero date.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	d.Time = ParseDate(s)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// ParseDate parses an ISO-8601 date or timestamp, returning the zero
// time when the string does not parse.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseDateValue parses an ISO-8601 string straight into a Date, for
// callers reading raw text columns.
func ParseDateValue(s string) Date {
	return Date{Time: ParseDate(s)}
}

// InYear reports whether the date falls in the given calendar year.
// Zero dates belong to no year.
func (d Date) InYear(year int) bool {
	return !d.IsZero() && d.Year() == year
}
