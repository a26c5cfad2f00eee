package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDateFormat              = errors.New("unrecognized date format")
	ErrMissingCategory         = errors.New("missing category")
	ErrMissingAmount           = errors.New("missing amount")
	ErrNegativeAmount          = errors.New("amount must not be negative")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidSource           = errors.New("invalid source")
	ErrInvalidDay              = errors.New("invalid day of month")
	ErrInvalidIncome           = errors.New("income must be a number greater than 0")
	ErrEmptyName               = errors.New("empty name")
	ErrNameTooLong             = errors.New("name too long (max 200 characters)")
	ErrMissingOwner            = errors.New("missing user id")
	ErrMissingPaymentID        = errors.New("missing payment id")
	ErrDuplicateExternalRecord = errors.New("external record already imported")
	ErrNotFound                = errors.New("not found")
)

// DateFormatError reports a timestamp that matched none of the accepted layouts.
type DateFormatError struct {
	Input string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("no valid date format found for %q", e.Input)
}

func (e *DateFormatError) Is(target error) bool {
	return target == ErrDateFormat
}

// ValidationError is returned for caller input that cannot be accepted.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StoreWriteError wraps a failed write. Writes are never dropped silently.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// SchemaRepairWarning records a column that was missing from a legacy ledger
// and has been backfilled with a default.
type SchemaRepairWarning struct {
	Column  string
	Default string
}

func (w SchemaRepairWarning) String() string {
	return fmt.Sprintf("column %q missing, backfilled with %q", w.Column, w.Default)
}

// SchedulerItemError is the failure of a single recurring definition during a run.
type SchedulerItemError struct {
	RecurringID int64
	Name        string
	Err         error
}

func (e *SchedulerItemError) Error() string {
	return fmt.Sprintf("recurring expense %d (%s): %v", e.RecurringID, e.Name, e.Err)
}

func (e *SchedulerItemError) Unwrap() error {
	return e.Err
}

// ProcessReport summarizes one scheduler run.
type ProcessReport struct {
	RunID     string
	Checked   int
	Processed int
	Created   []Transaction
	Errors    []*SchedulerItemError
}

// Err joins the item errors, or returns nil for a clean run.
func (r ProcessReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d recurring expenses failed: %s", len(r.Errors), strings.Join(msgs, "; "))
}
