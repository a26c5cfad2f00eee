package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finflow/internal/core"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository is the durable ledger. Writes are serialized twice: by
// writeMu inside the process and by SQLite's IMMEDIATE lock across processes.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	writeMu sync.Mutex
	now     func() time.Time
}

type Option func(*SQLiteRepository)

// WithClock replaces the clock used for default created_at values.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) {
		r.now = now
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendTransaction validates n, assigns the next id and persists the record.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	t, err := n.Build(r.now().UTC())
	if err != nil {
		return core.Transaction{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	err = r.inTx(ctx, func(q *Queries) error {
		id, err := q.NextTransactionID(ctx)
		if err != nil {
			return fmt.Errorf("next id: %w", err)
		}
		t.ID = id
		if err := q.InsertTransaction(ctx, toRow(t)); err != nil {
			return err
		}
		return q.BumpRevision(ctx)
	})
	if err != nil {
		if isUniqueViolation(err) && t.ExternalID != "" {
			return core.Transaction{}, fmt.Errorf("%w: %s", core.ErrDuplicateExternalRecord, t.ExternalID)
		}
		return core.Transaction{}, &core.StoreWriteError{Op: "append transaction", Err: err}
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"category", t.Category,
		"amount", t.Amount.String(),
		"source", string(t.Source),
		"created_at", t.CreatedAt)

	return t, nil
}

// ListTransactions returns every record ordered by id, optionally only those owned by userID.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID *int64) ([]core.Transaction, error) {
	var (
		rows []Transaction
		err  error
	)
	if userID != nil {
		rows, err = r.queries.ListTransactionsByUser(ctx, *userID)
	} else {
		rows, err = r.queries.ListTransactions(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %d: %w", row.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTransactionByExternalID looks up a previously imported record.
func (r *SQLiteRepository) GetTransactionByExternalID(ctx context.Context, externalID string) (core.Transaction, error) {
	row, err := r.queries.GetTransactionByExternalID(ctx, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by external id: %w", err)
	}
	return fromRow(row)
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// Revision is bumped by every committed write.
func (r *SQLiteRepository) Revision(ctx context.Context) (int64, error) {
	v, err := r.queries.GetRevision(ctx)
	if err != nil {
		return 0, fmt.Errorf("get revision: %w", err)
	}
	return v, nil
}

// CreateRecurringExpense stores a validated definition. NextDue must already be set.
func (r *SQLiteRepository) CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	if re.NextDue.IsZero() {
		return core.RecurringExpense{}, &core.ValidationError{Field: "next_due", Err: core.ErrDateFormat}
	}
	if re.CreatedAt.IsZero() {
		re.CreatedAt = r.now().UTC()
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var created RecurringExpense
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		created, err = q.CreateRecurringExpense(ctx, CreateRecurringExpenseParams{
			UserID:     re.UserID,
			Name:       re.Name,
			Category:   re.Category,
			Amount:     re.Amount.StringFixed(2),
			DayOfMonth: int64(core.ClampDayOfMonth(re.DayOfMonth)),
			NextDue:    re.NextDue.Format(core.DateLayout),
			CreatedAt:  core.FormatCanonical(re.CreatedAt),
		})
		if err != nil {
			return err
		}
		return q.BumpRevision(ctx)
	})
	if err != nil {
		return core.RecurringExpense{}, &core.StoreWriteError{Op: "create recurring expense", Err: err}
	}

	slog.InfoContext(ctx, "Recurring expense created",
		"id", created.ID,
		"user_id", created.UserID,
		"name", created.Name,
		"day_of_month", created.DayOfMonth,
		"next_due", created.NextDue)

	return fromRecurringRow(created)
}

// ListRecurringExpenses returns a user's definitions ordered by day of month.
func (r *SQLiteRepository) ListRecurringExpenses(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	rows, err := r.queries.ListRecurringExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return fromRecurringRows(rows)
}

// ListAllRecurringExpenses returns every definition across all users.
func (r *SQLiteRepository) ListAllRecurringExpenses(ctx context.Context) ([]core.RecurringExpense, error) {
	rows, err := r.queries.ListAllRecurringExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all recurring expenses: %w", err)
	}
	return fromRecurringRows(rows)
}

func (r *SQLiteRepository) GetRecurringExpense(ctx context.Context, id int64) (core.RecurringExpense, error) {
	row, err := r.queries.GetRecurringExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringExpense{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get recurring expense: %w", err)
	}
	return fromRecurringRow(row)
}

// DeleteRecurringExpense removes a definition owned by userID.
// It reports false when no such definition exists for that user.
func (r *SQLiteRepository) DeleteRecurringExpense(ctx context.Context, id, userID int64) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var affected int64
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		affected, err = q.DeleteRecurringExpense(ctx, id, userID)
		if err != nil || affected == 0 {
			return err
		}
		return q.BumpRevision(ctx)
	})
	if err != nil {
		return false, &core.StoreWriteError{Op: "delete recurring expense", Err: err}
	}

	if affected > 0 {
		slog.InfoContext(ctx, "Recurring expense deleted", "id", id, "user_id", userID)
	}
	return affected > 0, nil
}

// MaterializeRecurring writes the occurrence of def due on due and moves its
// next_due to next, both in one transaction.
//
// The advance is guarded on def.NextDue still being stored: when another run
// already advanced the definition nothing is written and false is returned. When
// the occurrence is already in the ledger the definition is still advanced so a
// catch-up loop terminates, and false is returned.
func (r *SQLiteRepository) MaterializeRecurring(ctx context.Context, def core.RecurringExpense, due, next time.Time) (core.Transaction, bool, error) {
	amount := def.Amount
	userID := def.UserID
	t, err := core.NewTransaction{
		Amount:      &amount,
		Category:    def.Category,
		Description: "Recurring: " + def.Name,
		CreatedAt:   core.FormatCanonical(core.StartOfDay(due)),
		Source:      core.SourceRecurring,
		ExternalID:  def.OccurrenceKey(due),
		UserID:      &userID,
	}.Build(r.now().UTC())
	if err != nil {
		return core.Transaction{}, false, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, false, &core.StoreWriteError{Op: "materialize recurring", Err: err}
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	advanced, err := q.AdvanceRecurringExpense(ctx, AdvanceRecurringExpenseParams{
		ID:            def.ID,
		ExpectedDue:   def.NextDue.Format(core.DateLayout),
		NextDue:       next.Format(core.DateLayout),
		LastProcessed: due.Format(core.DateLayout),
	})
	if err != nil {
		return core.Transaction{}, false, &core.StoreWriteError{Op: "advance recurring expense", Err: err}
	}
	if advanced == 0 {
		slog.DebugContext(ctx, "Recurring expense already advanced",
			"id", def.ID,
			"expected_due", def.NextDue.Format(core.DateLayout))
		return core.Transaction{}, false, nil
	}

	inserted := true
	id, err := q.NextTransactionID(ctx)
	if err != nil {
		return core.Transaction{}, false, &core.StoreWriteError{Op: "materialize recurring", Err: err}
	}
	t.ID = id
	if err := q.InsertTransaction(ctx, toRow(t)); err != nil {
		if !isUniqueViolation(err) {
			return core.Transaction{}, false, &core.StoreWriteError{Op: "materialize recurring", Err: err}
		}
		// The insert failed inside the transaction; SQLite keeps the
		// statement-level rollback local so the advance above still stands.
		inserted = false
		slog.WarnContext(ctx, "Recurring occurrence already in ledger",
			"id", def.ID,
			"external_id", t.ExternalID)
	}

	if err := q.BumpRevision(ctx); err != nil {
		return core.Transaction{}, false, &core.StoreWriteError{Op: "materialize recurring", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, false, &core.StoreWriteError{Op: "materialize recurring", Err: err}
	}

	if !inserted {
		return core.Transaction{}, false, nil
	}
	return t, true, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func toRow(t core.Transaction) Transaction {
	row := Transaction{
		ID:          t.ID,
		Amount:      t.Amount.StringFixed(2),
		Category:    t.Category,
		Description: t.Description,
		Method:      t.Method,
		CreatedAt:   t.CreatedAt,
		Source:      string(t.Source),
		Status:      t.Status,
	}
	if t.UserID != nil {
		row.UserID = sql.NullInt64{Int64: *t.UserID, Valid: true}
	}
	if t.ExternalID != "" {
		row.ExternalID = sql.NullString{String: t.ExternalID, Valid: true}
	}
	return row
}

func fromRow(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", row.Amount, err)
	}
	t := core.Transaction{
		ID:          row.ID,
		Amount:      amount,
		Category:    row.Category,
		Description: row.Description,
		Method:      row.Method,
		CreatedAt:   row.CreatedAt,
		Source:      core.Source(row.Source),
		ExternalID:  row.ExternalID.String,
		Status:      row.Status,
	}
	if row.UserID.Valid {
		uid := row.UserID.Int64
		t.UserID = &uid
	}
	return t, nil
}

func fromRecurringRows(rows []RecurringExpense) ([]core.RecurringExpense, error) {
	out := make([]core.RecurringExpense, 0, len(rows))
	for _, row := range rows {
		re, err := fromRecurringRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func fromRecurringRow(row RecurringExpense) (core.RecurringExpense, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("recurring expense %d: parse amount %q: %w", row.ID, row.Amount, err)
	}
	nextDue, err := time.Parse(core.DateLayout, row.NextDue)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("recurring expense %d: parse next_due: %w", row.ID, err)
	}
	re := core.RecurringExpense{
		ID:         row.ID,
		UserID:     row.UserID,
		Name:       row.Name,
		Category:   row.Category,
		Amount:     amount,
		DayOfMonth: int(row.DayOfMonth),
		NextDue:    nextDue,
	}
	if row.LastProcessed.Valid && row.LastProcessed.String != "" {
		lp, err := time.Parse(core.DateLayout, row.LastProcessed.String)
		if err != nil {
			return core.RecurringExpense{}, fmt.Errorf("recurring expense %d: parse last_processed: %w", row.ID, err)
		}
		re.LastProcessed = lp
	}
	if created, err := core.NormalizeDate(row.CreatedAt); err == nil {
		re.CreatedAt = created
	}
	return re, nil
}
