package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"finflow/internal/core"
)

// legacyTimestampLayout is how older exports wrote created_at.
const legacyTimestampLayout = "2006-01-02 15:04:05.999999999"

// legacyColumn describes one column of the CSV ledger format, with the
// aliases older exports used and the value backfilled when it is absent.
type legacyColumn struct {
	name     string
	aliases  []string
	fallback string
}

var legacyColumns = []legacyColumn{
	{name: "id"},
	{name: "category", fallback: core.DefaultCategory},
	{name: "amount", fallback: "0"},
	{name: "description", fallback: core.DefaultDescription},
	{name: "method", fallback: ""},
	{name: "created_at", fallback: "import time"},
	{name: "razorpay_payment_id", aliases: []string{"payment_id"}, fallback: ""},
	{name: "razorpay_order_id", fallback: ""},
	{name: "status", aliases: []string{"payment_status"}, fallback: core.DefaultStatus},
	{name: "source", fallback: string(core.SourceManual)},
	{name: "user_id", fallback: ""},
}

// RowError is a CSV row that could not be imported.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ImportReport summarizes a legacy CSV import.
type ImportReport struct {
	Imported       int
	Duplicates     int
	Skipped        []RowError
	Warnings       []core.SchemaRepairWarning
	UnknownColumns []string
}

// ImportLegacyCSV appends every row of a CSV ledger export. Missing columns are
// backfilled and reported as warnings, unknown columns are ignored, and rows that
// cannot be parsed are skipped and reported. Rows get fresh ids from the store.
func (r *SQLiteRepository) ImportLegacyCSV(ctx context.Context, rd io.Reader) (ImportReport, error) {
	var report ImportReport

	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read csv header: %w", err)
	}

	index, unknown := mapLegacyHeader(header)
	report.UnknownColumns = unknown
	for _, col := range legacyColumns {
		if _, ok := index[col.name]; !ok && col.name != "id" {
			w := core.SchemaRepairWarning{Column: col.name, Default: col.fallback}
			report.Warnings = append(report.Warnings, w)
			slog.WarnContext(ctx, "Legacy ledger column missing", "column", w.Column, "default", w.Default)
		}
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			report.Skipped = append(report.Skipped, RowError{Line: line, Err: err})
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		get := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		n, err := legacyRowToTransaction(get)
		if err != nil {
			report.Skipped = append(report.Skipped, RowError{Line: line, Err: err})
			continue
		}

		_, err = r.AppendTransaction(ctx, n)
		switch {
		case errors.Is(err, core.ErrDuplicateExternalRecord):
			report.Duplicates++
		case err != nil:
			var we *core.StoreWriteError
			if errors.As(err, &we) {
				return report, err
			}
			report.Skipped = append(report.Skipped, RowError{Line: line, Err: err})
		default:
			report.Imported++
		}
	}

	slog.InfoContext(ctx, "Legacy ledger imported",
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"skipped", len(report.Skipped),
		"repaired_columns", len(report.Warnings))

	return report, nil
}

func mapLegacyHeader(header []string) (map[string]int, []string) {
	lookup := make(map[string]string)
	for _, col := range legacyColumns {
		lookup[col.name] = col.name
		for _, a := range col.aliases {
			lookup[a] = col.name
		}
	}

	index := make(map[string]int)
	var unknown []string
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		name, ok := lookup[key]
		if !ok {
			unknown = append(unknown, h)
			continue
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	return index, unknown
}

func legacyRowToTransaction(get func(string) string) (core.NewTransaction, error) {
	rawAmount := get("amount")
	if rawAmount == "" {
		rawAmount = "0"
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return core.NewTransaction{}, fmt.Errorf("amount %q: %w", rawAmount, err)
	}

	var created string
	if raw := get("created_at"); raw != "" {
		t, err := parseLegacyTimestamp(raw)
		if err != nil {
			return core.NewTransaction{}, err
		}
		created = core.FormatCanonical(t)
	}

	category := get("category")
	if category == "" || category == "0" {
		category = core.DefaultCategory
	}

	source := core.Source(strings.ToLower(get("source")))
	if !source.Valid() {
		source = core.SourceManual
	}

	n := core.NewTransaction{
		Amount:      &amount,
		Category:    category,
		Description: zeroAsEmpty(get("description")),
		Method:      zeroAsEmpty(get("method")),
		CreatedAt:   created,
		Source:      source,
		ExternalID:  zeroAsEmpty(get("razorpay_payment_id")),
		Status:      zeroAsEmpty(get("status")),
	}
	if raw := zeroAsEmpty(get("user_id")); raw != "" {
		uid, err := strconv.ParseInt(strings.TrimSuffix(raw, ".0"), 10, 64)
		if err != nil {
			return core.NewTransaction{}, fmt.Errorf("user_id %q: %w", raw, err)
		}
		n.UserID = &uid
	}
	if n.ExternalID != "" && n.Source == core.SourceManual {
		n.Source = core.SourceExternalSync
	}
	return n, nil
}

func parseLegacyTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(legacyTimestampLayout, raw); err == nil {
		return t, nil
	}
	return core.NormalizeDate(raw)
}

// zeroAsEmpty treats the "0" that older exports wrote for blank cells as blank.
func zeroAsEmpty(s string) string {
	if s == "0" || strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}
