package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finflow/internal/core"

	"github.com/google/uuid"
)

// RecurringStore is the part of the ledger store the scheduler needs.
type RecurringStore interface {
	ListAllRecurringExpenses(ctx context.Context) ([]core.RecurringExpense, error)
	GetRecurringExpense(ctx context.Context, id int64) (core.RecurringExpense, error)
	MaterializeRecurring(ctx context.Context, def core.RecurringExpense, due, next time.Time) (core.Transaction, bool, error)
}

// RecurringProcessor turns due recurring expense definitions into ledger transactions.
type RecurringProcessor struct {
	store RecurringStore
}

// NewRecurringProcessor creates a new recurring expense processor
func NewRecurringProcessor(store RecurringStore) *RecurringProcessor {
	return &RecurringProcessor{store: store}
}

// ProcessDue materializes every occurrence due on or before today, for all users.
//
// Missed days are caught up one occurrence at a time. Running twice for the same
// day creates nothing the second time. A failing definition is recorded in the
// report and the run moves on; only failing to list definitions aborts the run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today time.Time) (core.ProcessReport, error) {
	report := core.ProcessReport{RunID: uuid.NewString()}
	if p.store == nil {
		return report, fmt.Errorf("processor not properly initialized")
	}

	defs, err := p.store.ListAllRecurringExpenses(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list recurring expenses: %w", err)
	}

	day := dateOf(today)
	slog.InfoContext(ctx, "Processing recurring expenses",
		"run_id", report.RunID,
		"total_active", len(defs),
		"processing_date", day.Format(core.DateLayout))

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		created, err := p.catchUp(ctx, def, day)
		report.Created = append(report.Created, created...)
		report.Processed += len(created)
		if err != nil {
			itemErr := &core.SchedulerItemError{RecurringID: def.ID, Name: def.Name, Err: err}
			report.Errors = append(report.Errors, itemErr)
			slog.ErrorContext(ctx, "Failed to process recurring expense",
				"run_id", report.RunID,
				"recurrent_id", def.ID,
				"name", def.Name,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"run_id", report.RunID,
		"processed", report.Processed,
		"total_checked", report.Checked,
		"failed", len(report.Errors))

	return report, nil
}

// catchUp materializes each occurrence of def up to and including today.
func (p *RecurringProcessor) catchUp(ctx context.Context, def core.RecurringExpense, today time.Time) ([]core.Transaction, error) {
	var created []core.Transaction

	for due := dateOf(def.NextDue); !due.After(today); due = dateOf(def.NextDue) {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		next := ComputeNextDue(due.AddDate(0, 0, 1), def.DayOfMonth)
		tx, ok, err := p.store.MaterializeRecurring(ctx, def, due, next)
		if err != nil {
			return created, fmt.Errorf("materialize %s: %w", due.Format(core.DateLayout), err)
		}

		if ok {
			created = append(created, tx)
			slog.InfoContext(ctx, "Created transaction from recurring expense",
				"recurrent_id", def.ID,
				"transaction_id", tx.ID,
				"amount", tx.Amount.String(),
				"due", due.Format(core.DateLayout),
				"next_due", next.Format(core.DateLayout))
			def.NextDue = next
			def.LastProcessed = due
			continue
		}

		// Someone else moved the definition on; continue from what is stored.
		fresh, err := p.store.GetRecurringExpense(ctx, def.ID)
		if errors.Is(err, core.ErrNotFound) {
			return created, nil
		}
		if err != nil {
			return created, fmt.Errorf("reload definition: %w", err)
		}
		if !dateOf(fresh.NextDue).After(due) {
			return created, fmt.Errorf("next due did not advance past %s", due.Format(core.DateLayout))
		}
		def = fresh
	}

	return created, nil
}
