package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finflow/internal/core"
	"finflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createDefinition(t *testing.T, store *storage.SQLiteRepository, userID int64, name string, day int, created time.Time) core.RecurringExpense {
	t.Helper()
	def, err := store.CreateRecurringExpense(context.Background(), core.RecurringExpense{
		UserID:     userID,
		Name:       name,
		Category:   "Utilities",
		Amount:     dec("999"),
		DayOfMonth: day,
		NextDue:    ComputeNextDue(created, day),
	})
	require.NoError(t, err)
	return def
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createDefinition(t, store, 1, "Internet", 10, date(2024, 5, 1))
	createDefinition(t, store, 2, "Gym", 20, date(2024, 5, 1))

	p := NewRecurringProcessor(store)
	report, err := p.ProcessDue(ctx, date(2024, 5, 10))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Created, 1)
	assert.Equal(t, "Recurring: Internet", report.Created[0].Description)
	assert.Equal(t, "2024-05-10T00:00:00", report.Created[0].CreatedAt)
	assert.NoError(t, report.Err())
}

func TestRecurringProcessor_SameDayTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	def := createDefinition(t, store, 1, "Internet", 10, date(2024, 5, 1))

	p := NewRecurringProcessor(store)
	first, err := p.ProcessDue(ctx, date(2024, 5, 10))
	require.NoError(t, err)
	second, err := p.ProcessDue(ctx, date(2024, 5, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Processed)
	assert.Zero(t, second.Processed)

	txs, err := store.ListTransactions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	stored, err := store.GetRecurringExpense(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 6, 10), stored.NextDue)
	assert.Equal(t, date(2024, 5, 10), stored.LastProcessed)
}

func TestRecurringProcessor_CatchesUpMissedMonths(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createDefinition(t, store, 1, "Rent", 5, date(2024, 1, 1))

	report, err := NewRecurringProcessor(store).ProcessDue(ctx, date(2024, 3, 7))
	require.NoError(t, err)

	require.Len(t, report.Created, 3)
	assert.Equal(t, "2024-01-05T00:00:00", report.Created[0].CreatedAt)
	assert.Equal(t, "2024-02-05T00:00:00", report.Created[1].CreatedAt)
	assert.Equal(t, "2024-03-05T00:00:00", report.Created[2].CreatedAt)
}

func TestRecurringProcessor_Day31OnThirtyDayMonth(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createDefinition(t, store, 1, "Insurance", 31, date(2024, 4, 1))

	p := NewRecurringProcessor(store)

	report, err := p.ProcessDue(ctx, date(2024, 4, 27))
	require.NoError(t, err)
	assert.Zero(t, report.Processed)

	report, err = p.ProcessDue(ctx, date(2024, 4, 28))
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, "2024-04-28T00:00:00", report.Created[0].CreatedAt)
}

func TestRecurringProcessor_NextDueNeverBeforeToday(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	createDefinition(t, store, 1, "Rent", 28, date(2023, 11, 1))

	today := date(2024, 1, 30)
	_, err := NewRecurringProcessor(store).ProcessDue(ctx, today)
	require.NoError(t, err)

	defs, err := store.ListAllRecurringExpenses(ctx)
	require.NoError(t, err)
	for _, d := range defs {
		assert.False(t, d.NextDue.Before(today), "next due %s", d.NextDue)
	}
}

type mockRecurringStore struct {
	mock.Mock
}

func (m *mockRecurringStore) ListAllRecurringExpenses(ctx context.Context) ([]core.RecurringExpense, error) {
	args := m.Called(ctx)
	defs, _ := args.Get(0).([]core.RecurringExpense)
	return defs, args.Error(1)
}

func (m *mockRecurringStore) GetRecurringExpense(ctx context.Context, id int64) (core.RecurringExpense, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(core.RecurringExpense), args.Error(1)
}

func (m *mockRecurringStore) MaterializeRecurring(ctx context.Context, def core.RecurringExpense, due, next time.Time) (core.Transaction, bool, error) {
	args := m.Called(ctx, def, due, next)
	return args.Get(0).(core.Transaction), args.Bool(1), args.Error(2)
}

func TestRecurringProcessor_ContinueOnError(t *testing.T) {
	ctx := context.Background()
	failing := core.RecurringExpense{ID: 1, Name: "Broken", DayOfMonth: 5, NextDue: date(2024, 5, 5)}
	healthy := core.RecurringExpense{ID: 2, Name: "Phone", DayOfMonth: 5, NextDue: date(2024, 5, 5)}

	store := new(mockRecurringStore)
	store.On("ListAllRecurringExpenses", ctx).Return([]core.RecurringExpense{failing, healthy}, nil)
	store.On("MaterializeRecurring", ctx, failing, date(2024, 5, 5), date(2024, 6, 5)).
		Return(core.Transaction{}, false, &core.StoreWriteError{Op: "materialize recurring", Err: errors.New("disk full")})
	store.On("MaterializeRecurring", ctx, healthy, date(2024, 5, 5), date(2024, 6, 5)).
		Return(core.Transaction{ID: 10}, true, nil)

	report, err := NewRecurringProcessor(store).ProcessDue(ctx, date(2024, 5, 5))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Processed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, int64(1), report.Errors[0].RecurringID)
	var we *core.StoreWriteError
	assert.ErrorAs(t, report.Errors[0], &we)
	assert.Error(t, report.Err())
	store.AssertExpectations(t)
}

func TestRecurringProcessor_ListFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	store := new(mockRecurringStore)
	store.On("ListAllRecurringExpenses", ctx).Return(nil, errors.New("database is locked"))

	_, err := NewRecurringProcessor(store).ProcessDue(ctx, date(2024, 5, 5))
	assert.Error(t, err)
}

func TestRecurringProcessor_ReloadsWhenAdvancedElsewhere(t *testing.T) {
	ctx := context.Background()
	stale := core.RecurringExpense{ID: 1, Name: "Rent", DayOfMonth: 5, NextDue: date(2024, 5, 5)}
	fresh := stale
	fresh.NextDue = date(2024, 6, 5)

	store := new(mockRecurringStore)
	store.On("ListAllRecurringExpenses", ctx).Return([]core.RecurringExpense{stale}, nil)
	store.On("MaterializeRecurring", ctx, stale, date(2024, 5, 5), date(2024, 6, 5)).
		Return(core.Transaction{}, false, nil)
	store.On("GetRecurringExpense", ctx, int64(1)).Return(fresh, nil)

	report, err := NewRecurringProcessor(store).ProcessDue(ctx, date(2024, 5, 20))
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Empty(t, report.Errors)
	store.AssertExpectations(t)
}

func TestRecurringProcessor_NilStore(t *testing.T) {
	_, err := NewRecurringProcessor(nil).ProcessDue(context.Background(), date(2024, 5, 5))
	assert.Error(t, err)
}
