package services

import (
	"time"

	"finflow/internal/core"
)

// ComputeNextDue returns the first date on or after today that falls on
// dayOfMonth. The day is clamped to [1, 28] so it exists in every month.
//
// The result is a UTC midnight date. Only the calendar date of today matters.
func ComputeNextDue(today time.Time, dayOfMonth int) time.Time {
	day := core.ClampDayOfMonth(dayOfMonth)
	today = dateOf(today)

	candidate := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, time.UTC)
	if candidate.Before(today) {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate
}

// dateOf keeps the calendar date of t, as seen in t's own location, at UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
