package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finflow/internal/backend"
	"finflow/internal/core"
	"finflow/internal/log"
	"finflow/internal/services"
	"finflow/internal/sheets/memory"
	"finflow/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var logs bytes.Buffer
	ledger := services.NewLedger(repo,
		services.WithLogger(log.New(log.Config{Output: &logs})),
		services.WithLedgerClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }))

	sheet := memory.New()
	var out bytes.Buffer
	return &app{
		ledger:   ledger,
		importer: repo,
		exporter: func(ctx context.Context) (*backend.BackendResult, error) {
			return &backend.BackendResult{Type: backend.MemoryBackend, Backend: sheet}, nil
		},
		budget: decimal.NewFromInt(5000),
		out:    &out,
		today:  func() time.Time { return time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC) },
	}, &out, sheet
}

func TestApp_AddListSummary(t *testing.T) {
	ctx := context.Background()
	a, out, _ := newTestApp(t)

	require.NoError(t, a.run(ctx, "add", []string{"-amount", "100", "-category", "Food", "-date", "02-05-2024"}))
	require.NoError(t, a.run(ctx, "add", []string{"-amount", "50", "-category", "Transport", "-date", "2024-05-14"}))
	assert.Contains(t, out.String(), "recorded transaction 1 (Food 100.00 on 2024-05-02T00:00:00)")

	out.Reset()
	require.NoError(t, a.run(ctx, "list", nil))
	assert.Contains(t, out.String(), "Transport")

	out.Reset()
	require.NoError(t, a.run(ctx, "summary", nil))
	assert.Regexp(t, `this month\s+150\.00`, out.String())
	assert.Regexp(t, `this week\s+50\.00`, out.String())
	assert.Contains(t, out.String(), "4850.00 of 5000.00")
}

func TestApp_AddRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestApp(t)

	assert.ErrorIs(t, a.run(ctx, "add", []string{"-amount", "-5", "-category", "Food"}), core.ErrInvalidAmount)
	assert.ErrorIs(t, a.run(ctx, "add", []string{"-amount", "5"}), core.ErrMissingCategory)
	assert.Error(t, a.run(ctx, "nope", nil))
}

func TestApp_RecurringCommands(t *testing.T) {
	ctx := context.Background()
	a, out, _ := newTestApp(t)

	require.NoError(t, a.run(ctx, "recurring-add", []string{"-user", "3", "-name", "Rent", "-category", "Utilities", "-amount", "12000", "-day", "10"}))
	assert.Contains(t, out.String(), "created recurring expense 1")

	out.Reset()
	require.NoError(t, a.run(ctx, "recurring-list", []string{"-user", "3"}))
	assert.Contains(t, out.String(), "2024-05-10")

	out.Reset()
	require.NoError(t, a.run(ctx, "run-scheduler", []string{"-today", "2024-05-10"}))
	assert.Contains(t, out.String(), "created 1")

	assert.ErrorIs(t, a.run(ctx, "recurring-delete", []string{"-id", "1", "-user", "4"}), core.ErrNotFound)
	require.NoError(t, a.run(ctx, "recurring-delete", []string{"-id", "1", "-user", "3"}))
}

func TestApp_PredictAndProgress(t *testing.T) {
	ctx := context.Background()
	a, out, _ := newTestApp(t)

	require.NoError(t, a.run(ctx, "predict", []string{"-income", "10,000"}))
	assert.Contains(t, out.String(), "Food")
	assert.Contains(t, out.String(), "3000.00")

	assert.ErrorIs(t, a.run(ctx, "predict", []string{"-income", "0"}), core.ErrInvalidIncome)

	require.NoError(t, a.run(ctx, "add", []string{"-amount", "2900", "-category", "Food", "-date", "2024-05-03"}))
	out.Reset()
	require.NoError(t, a.run(ctx, "progress", []string{"-income", "10000"}))
	assert.Contains(t, out.String(), "danger")
}

func TestApp_ImportCSVAndExport(t *testing.T) {
	ctx := context.Background()
	a, out, sheet := newTestApp(t)

	path := filepath.Join(t.TempDir(), "expenses.csv")
	csv := "id,category,amount,created_at\n1,Food,120,2024-05-01 10:00:00\n2,Transport,abc,2024-05-02\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	require.NoError(t, a.run(ctx, "import-csv", []string{"-file", path}))
	assert.Contains(t, out.String(), "imported: 1")
	assert.Contains(t, out.String(), "skipped: 1")

	out.Reset()
	require.NoError(t, a.run(ctx, "export-sheet", nil))
	assert.Contains(t, out.String(), "exported 1 transactions to mem:1-1")
	assert.Len(t, sheet.Exported(), 1)

	out.Reset()
	require.NoError(t, a.run(ctx, "export-sheet", []string{"-after-id", "1"}))
	assert.Contains(t, out.String(), "nothing to export")
}

func TestApp_ExportSheetRunsBackendCleanup(t *testing.T) {
	ctx := context.Background()
	a, out, sheet := newTestApp(t)

	require.NoError(t, a.run(ctx, "add", []string{"-amount", "40", "-category", "Food"}))
	out.Reset()

	closed := 0
	closeErr := errors.New("connection reset")
	a.exporter = func(ctx context.Context) (*backend.BackendResult, error) {
		return &backend.BackendResult{
			Type:    backend.MemoryBackend,
			Backend: sheet,
			Cleanup: func() error {
				closed++
				return closeErr
			},
		}, nil
	}

	err := a.run(ctx, "export-sheet", nil)
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, 1, closed)
	assert.Len(t, sheet.Exported(), 1)
	assert.Contains(t, out.String(), "exported 1 transactions")

	out.Reset()
	require.NoError(t, a.run(ctx, "export-sheet", []string{"-after-id", "1"}))
	assert.Equal(t, 1, closed, "no backend is opened when there is nothing to export")
}
