package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finflow/internal/cache"
	"finflow/internal/core"
	"finflow/internal/log"

	"github.com/shopspring/decimal"
)

// LedgerStore is the persistence the ledger facade works against.
type LedgerStore interface {
	RecurringStore
	AppendTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID *int64) ([]core.Transaction, error)
	Revision(ctx context.Context) (int64, error)
	CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error)
	ListRecurringExpenses(ctx context.Context, userID int64) ([]core.RecurringExpense, error)
	DeleteRecurringExpense(ctx context.Context, id, userID int64) (bool, error)
}

// EventPublisher announces committed ledger writes to other services.
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, tx core.Transaction) error
}

// Ledger is the single entry point collaborators call into: request handlers,
// the CLI, the payment worker and the daily scheduler trigger.
type Ledger struct {
	store     LedgerStore
	scheduler *RecurringProcessor
	publisher EventPublisher
	summaries cache.Cache[core.Summary]
	opening   decimal.Decimal
	logger    *log.Logger
	now       func() time.Time
}

type LedgerOption func(*Ledger)

// WithPublisher makes the ledger announce each new transaction.
func WithPublisher(p EventPublisher) LedgerOption {
	return func(l *Ledger) { l.publisher = p }
}

// WithSummaryCache memoizes summaries per store revision.
func WithSummaryCache(c cache.Cache[core.Summary]) LedgerOption {
	return func(l *Ledger) { l.summaries = c }
}

func WithOpeningBalance(d decimal.Decimal) LedgerOption {
	return func(l *Ledger) { l.opening = d }
}

func WithLogger(logger *log.Logger) LedgerOption {
	return func(l *Ledger) { l.logger = logger.WithComponent(log.ComponentLedger) }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:     store,
		scheduler: NewRecurringProcessor(store),
		opening:   DefaultOpeningBalance,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AppendTransaction persists a caller-supplied record. Write failures always
// reach the caller; a failed announcement does not.
func (l *Ledger) AppendTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	tx, err := l.store.AppendTransaction(ctx, n)
	if err != nil {
		return core.Transaction{}, err
	}
	l.publish(ctx, tx)
	return tx, nil
}

// ListTransactions returns the ledger, or an empty ledger when it cannot be read.
func (l *Ledger) ListTransactions(ctx context.Context, userID *int64) []core.Transaction {
	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpList).WithUser(userID).WithError(err)
		l.logger.ErrorContext(ctx, "Failed to read ledger, returning empty result", fields.ToSlice()...)
		return []core.Transaction{}
	}
	return txs
}

// Summarize computes the spending summary for reference over the caller's records.
func (l *Ledger) Summarize(ctx context.Context, reference time.Time, budget decimal.Decimal, userID *int64) (core.Summary, error) {
	if err := ctx.Err(); err != nil {
		return core.Summary{}, err
	}

	key, cacheable := l.summaryKey(ctx, reference, budget, userID)
	if cacheable {
		if s, ok := l.summaries.Get(key); ok {
			return s, nil
		}
	}

	s := Summarize(l.ListTransactions(ctx, userID), reference, budget, l.opening)
	if s.SkippedCount > 0 {
		l.logger.WarnContext(ctx, "Transactions with unrecognized dates left out of period sums",
			log.FieldReference, s.Reference,
			"skipped", s.SkippedCount)
	}
	if cacheable {
		l.summaries.Set(key, s)
	}
	return s, nil
}

func (l *Ledger) summaryKey(ctx context.Context, reference time.Time, budget decimal.Decimal, userID *int64) (string, bool) {
	if l.summaries == nil {
		return "", false
	}
	rev, err := l.store.Revision(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "Store revision unavailable, summary not cached", log.FieldError, err)
		return "", false
	}
	owner := "all"
	if userID != nil {
		owner = fmt.Sprint(*userID)
	}
	return cache.Key(rev, owner, reference.Format(core.DateLayout), budget.String(), l.opening.String()), true
}

// AddRecurringExpense registers a monthly expense and returns its id. The first
// occurrence is due on the next dayOfMonth, counting today.
func (l *Ledger) AddRecurringExpense(ctx context.Context, userID int64, name, category string, amount decimal.Decimal, dayOfMonth int) (int64, error) {
	def := core.RecurringExpense{
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		Category:   strings.TrimSpace(category),
		Amount:     amount,
		DayOfMonth: dayOfMonth,
	}
	if err := def.Validate(); err != nil {
		return 0, err
	}

	now := l.now()
	def.DayOfMonth = core.ClampDayOfMonth(dayOfMonth)
	def.NextDue = ComputeNextDue(now, def.DayOfMonth)
	def.CreatedAt = now.UTC()

	created, err := l.store.CreateRecurringExpense(ctx, def)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (l *Ledger) ListRecurringExpenses(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	defs, err := l.store.ListRecurringExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return defs, nil
}

// DeleteRecurringExpense reports whether a definition owned by userID was removed.
func (l *Ledger) DeleteRecurringExpense(ctx context.Context, id, userID int64) (bool, error) {
	return l.store.DeleteRecurringExpense(ctx, id, userID)
}

// RunDailyScheduler materializes everything due up to today. It is safe to
// call several times a day. A run that cannot list definitions reports that
// failure as its only error.
func (l *Ledger) RunDailyScheduler(ctx context.Context, today time.Time) core.ProcessReport {
	report, err := l.scheduler.ProcessDue(ctx, today)
	if err != nil {
		report.Errors = append(report.Errors, &core.SchedulerItemError{Name: "recurring run", Err: err})
		l.logger.ErrorContext(ctx, "Recurring run aborted",
			log.FieldRunID, report.RunID,
			log.FieldError, err)
	}
	for _, tx := range report.Created {
		l.publish(ctx, tx)
	}
	return report
}

// ImportExternal records a captured payment once. It returns false, with no
// error, when the payment was already imported.
func (l *Ledger) ImportExternal(ctx context.Context, p core.ExternalPayment) (core.Transaction, bool, error) {
	if strings.TrimSpace(p.PaymentID) == "" {
		return core.Transaction{}, false, &core.ValidationError{Field: "payment_id", Err: core.ErrMissingPaymentID}
	}

	tx, err := l.store.AppendTransaction(ctx, p.ToNewTransaction())
	if errors.Is(err, core.ErrDuplicateExternalRecord) {
		l.logger.InfoContext(ctx, "External payment already imported",
			log.FieldExternalID, p.PaymentID)
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, err
	}

	l.logger.InfoContext(ctx, "External payment imported",
		log.NewFields().
			WithOperation(log.OpImport).
			WithTransaction(tx.ID, tx.Category, tx.Amount.String(), string(tx.Source)).
			WithUser(tx.UserID).
			ToSlice()...)
	l.publish(ctx, tx)
	return tx, true, nil
}

// PredictLimits suggests monthly category limits for income.
func (l *Ledger) PredictLimits(ctx context.Context, income decimal.Decimal) []core.CategoryLimit {
	return PredictLimits(income)
}

// SpendingProgress compares the month containing reference against the limits
// suggested for income.
func (l *Ledger) SpendingProgress(ctx context.Context, income decimal.Decimal, reference time.Time, userID *int64) ([]core.CategoryProgress, error) {
	s, err := l.Summarize(ctx, reference, income, userID)
	if err != nil {
		return nil, err
	}
	return SpendingProgress(PredictLimits(income), s), nil
}

func (l *Ledger) publish(ctx context.Context, tx core.Transaction) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishTransactionRecorded(ctx, tx); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, tx.ID,
			log.FieldError, err)
	}
}
