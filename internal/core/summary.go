package core

import "github.com/shopspring/decimal"

// CategoryTotal is the rollup of one category.
type CategoryTotal struct {
	Category string
	Count    int
	Amount   decimal.Decimal
}

// BalancePoint is one step of the running balance series.
type BalancePoint struct {
	TransactionID int64
	Date          string
	Amount        decimal.Decimal
	Balance       decimal.Decimal
}

// Summary is computed fresh from a ledger snapshot and never persisted.
type Summary struct {
	Reference    string // reference date, DateLayout
	TotalCount   int    // every record, parseable or not
	ParsedCount  int
	SkippedCount int // records whose created_at could not be normalized

	TotalSpent   decimal.Decimal
	AverageSpent decimal.Decimal
	MaxSpent     decimal.Decimal
	MinSpent     decimal.Decimal

	MonthlySpent decimal.Decimal
	WeeklySpent  decimal.Decimal
	Budget       decimal.Decimal
	AmountLeft   decimal.Decimal

	ByCategory      []CategoryTotal            // all records, sorted by category name
	MonthByCategory []CategoryTotal            // reference month only, sorted by category name
	ByMonth         map[string]decimal.Decimal // MonthKey -> spend
	ByWeek          map[string]decimal.Decimal // WeekKey -> spend
	Balance         []BalancePoint
	Opening         decimal.Decimal
	Closing         decimal.Decimal
}

// Category returns the rollup for name, or a zero value.
func (s Summary) Category(name string) CategoryTotal {
	for _, c := range s.ByCategory {
		if c.Category == name {
			return c
		}
	}
	return CategoryTotal{Category: name, Amount: decimal.Zero}
}

// CategoryLimit is a suggested monthly limit for one category.
type CategoryLimit struct {
	Category      string
	Limit         decimal.Decimal
	ExpectedCount int
}

// Progress levels for a category limit.
const (
	ProgressGood    = "good"
	ProgressWarning = "warning" // above 75% of the limit
	ProgressDanger  = "danger"  // above 90% of the limit
)

// CategoryProgress compares month-to-date spend in a category with its limit.
type CategoryProgress struct {
	Category  string
	Limit     decimal.Decimal
	Spent     decimal.Decimal
	Remaining decimal.Decimal // never negative
	Overspent decimal.Decimal
	Percent   int // capped at 100
	Status    string
	Count     int
	Expected  int
}

func (p CategoryProgress) Exceeded() bool {
	return p.Spent.GreaterThan(p.Limit)
}
