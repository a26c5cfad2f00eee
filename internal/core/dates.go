package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CanonicalLayout is the single form CreatedAt is stored in.
	CanonicalLayout = "2006-01-02T15:04:05"
	// DateLayout is used for day-granularity fields such as next_due.
	DateLayout = "2006-01-02"
)

// acceptedLayouts is tried in order. Time-bearing layouts come first so an input
// that matches several layouts always resolves the same way. Day and month may
// be written without a leading zero.
var acceptedLayouts = []string{
	CanonicalLayout,
	"2-1-2006 15:04",
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
}

// NormalizeDate parses s against the accepted layouts and returns the first match.
// Times are interpreted as UTC wall-clock values.
func NormalizeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &DateFormatError{Input: s}
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateFormatError{Input: s}
}

// FormatCanonical renders t in CanonicalLayout, dropping sub-second precision and zone.
func FormatCanonical(t time.Time) string {
	return t.Format(CanonicalLayout)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthKey returns the per-month bucket key, e.g. "2024-05".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// WeekKey returns the ISO week bucket key, e.g. "2024-W20".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
