package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Transaction mirrors a row of the transactions table.
type Transaction struct {
	ID          int64
	Amount      string
	Category    string
	Description string
	Method      string
	CreatedAt   string
	UserID      sql.NullInt64
	Source      string
	ExternalID  sql.NullString
	Status      string
}

// RecurringExpense mirrors a row of the recurring_expenses table.
type RecurringExpense struct {
	ID            int64
	UserID        int64
	Name          string
	Category      string
	Amount        string
	DayOfMonth    int64
	NextDue       string
	LastProcessed sql.NullString
	CreatedAt     string
}

const transactionColumns = `id, amount, category, description, method, created_at, user_id, source, external_id, status`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.Amount,
		&t.Category,
		&t.Description,
		&t.Method,
		&t.CreatedAt,
		&t.UserID,
		&t.Source,
		&t.ExternalID,
		&t.Status,
	)
	return t, err
}

const nextTransactionID = `SELECT COALESCE(MAX(id), 0) + 1 FROM transactions`

func (q *Queries) NextTransactionID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, nextTransactionID).Scan(&id)
	return id, err
}

const insertTransaction = `INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		t.ID,
		t.Amount,
		t.Category,
		t.Description,
		t.Method,
		t.CreatedAt,
		t.UserID,
		t.Source,
		t.ExternalID,
		t.Status,
	)
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const getTransactionByExternalID = `SELECT ` + transactionColumns + ` FROM transactions WHERE external_id = ?`

func (q *Queries) GetTransactionByExternalID(ctx context.Context, externalID string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionByExternalID, externalID))
}

const listTransactions = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY id`

const listTransactionsByUser = `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ? ORDER BY id`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactions)
}

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID int64) ([]Transaction, error) {
	return q.queryTransactions(ctx, listTransactionsByUser, userID)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}

const bumpRevision = `UPDATE ledger_meta SET value = value + 1 WHERE key = 'revision'`

func (q *Queries) BumpRevision(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, bumpRevision)
	return err
}

const getRevision = `SELECT value FROM ledger_meta WHERE key = 'revision'`

func (q *Queries) GetRevision(ctx context.Context) (int64, error) {
	var v int64
	err := q.db.QueryRowContext(ctx, getRevision).Scan(&v)
	return v, err
}

const recurringColumns = `id, user_id, name, category, amount, day_of_month, next_due, last_processed, created_at`

func scanRecurring(row interface{ Scan(...any) error }) (RecurringExpense, error) {
	var r RecurringExpense
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Name,
		&r.Category,
		&r.Amount,
		&r.DayOfMonth,
		&r.NextDue,
		&r.LastProcessed,
		&r.CreatedAt,
	)
	return r, err
}

const createRecurringExpense = `INSERT INTO recurring_expenses (user_id, name, category, amount, day_of_month, next_due, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + recurringColumns

type CreateRecurringExpenseParams struct {
	UserID     int64
	Name       string
	Category   string
	Amount     string
	DayOfMonth int64
	NextDue    string
	CreatedAt  string
}

func (q *Queries) CreateRecurringExpense(ctx context.Context, arg CreateRecurringExpenseParams) (RecurringExpense, error) {
	return scanRecurring(q.db.QueryRowContext(ctx, createRecurringExpense,
		arg.UserID,
		arg.Name,
		arg.Category,
		arg.Amount,
		arg.DayOfMonth,
		arg.NextDue,
		arg.CreatedAt,
	))
}

const getRecurringExpense = `SELECT ` + recurringColumns + ` FROM recurring_expenses WHERE id = ?`

func (q *Queries) GetRecurringExpense(ctx context.Context, id int64) (RecurringExpense, error) {
	return scanRecurring(q.db.QueryRowContext(ctx, getRecurringExpense, id))
}

const listRecurringExpensesByUser = `SELECT ` + recurringColumns + ` FROM recurring_expenses
WHERE user_id = ?
ORDER BY day_of_month ASC, id ASC`

const listAllRecurringExpenses = `SELECT ` + recurringColumns + ` FROM recurring_expenses ORDER BY id`

func (q *Queries) ListRecurringExpensesByUser(ctx context.Context, userID int64) ([]RecurringExpense, error) {
	return q.queryRecurring(ctx, listRecurringExpensesByUser, userID)
}

func (q *Queries) ListAllRecurringExpenses(ctx context.Context) ([]RecurringExpense, error) {
	return q.queryRecurring(ctx, listAllRecurringExpenses)
}

func (q *Queries) queryRecurring(ctx context.Context, query string, args ...any) ([]RecurringExpense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringExpense
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRecurringExpense = `DELETE FROM recurring_expenses WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteRecurringExpense(ctx context.Context, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRecurringExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// advanceRecurringExpense only matches while next_due still holds the value the
// caller read, so two schedulers racing on the same occurrence advance it once.
const advanceRecurringExpense = `UPDATE recurring_expenses
SET next_due = ?, last_processed = ?
WHERE id = ? AND next_due = ?`

type AdvanceRecurringExpenseParams struct {
	ID            int64
	ExpectedDue   string
	NextDue       string
	LastProcessed string
}

func (q *Queries) AdvanceRecurringExpense(ctx context.Context, arg AdvanceRecurringExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, advanceRecurringExpense,
		arg.NextDue,
		arg.LastProcessed,
		arg.ID,
		arg.ExpectedDue,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
