package services

import (
	"sort"
	"time"

	"finflow/internal/core"

	"github.com/shopspring/decimal"
)

// DefaultOpeningBalance seeds the running balance when none is configured.
var DefaultOpeningBalance = decimal.NewFromInt(100000)

type datedTransaction struct {
	tx   core.Transaction
	date time.Time
}

// Summarize computes spending figures for reference from a ledger snapshot.
//
// Every amount counts as spend. Records whose created_at cannot be normalized
// still count toward the totals and category rollups, but are left out of the
// period sums and the balance series.
func Summarize(records []core.Transaction, reference time.Time, budget, openingBalance decimal.Decimal) core.Summary {
	s := core.Summary{
		Reference:    reference.Format(core.DateLayout),
		TotalCount:   len(records),
		TotalSpent:   decimal.Zero,
		AverageSpent: decimal.Zero,
		MaxSpent:     decimal.Zero,
		MinSpent:     decimal.Zero,
		MonthlySpent: decimal.Zero,
		WeeklySpent:  decimal.Zero,
		Budget:       budget,
		ByMonth:      make(map[string]decimal.Decimal),
		ByWeek:       make(map[string]decimal.Decimal),
		Opening:      openingBalance,
		Closing:      openingBalance,
	}

	refYear, refMonth, _ := reference.Date()
	refISOYear, refWeek := reference.ISOWeek()

	byCategory := make(map[string]*core.CategoryTotal)
	monthByCategory := make(map[string]*core.CategoryTotal)
	parsed := make([]datedTransaction, 0, len(records))

	for i, r := range records {
		s.TotalSpent = s.TotalSpent.Add(r.Amount)
		if i == 0 || r.Amount.GreaterThan(s.MaxSpent) {
			s.MaxSpent = r.Amount
		}
		if i == 0 || r.Amount.LessThan(s.MinSpent) {
			s.MinSpent = r.Amount
		}
		addToCategory(byCategory, r)

		date, err := r.Date()
		if err != nil {
			s.SkippedCount++
			continue
		}
		parsed = append(parsed, datedTransaction{tx: r, date: date})

		month := core.MonthKey(date)
		s.ByMonth[month] = s.ByMonth[month].Add(r.Amount)
		week := core.WeekKey(date)
		s.ByWeek[week] = s.ByWeek[week].Add(r.Amount)

		y, m, _ := date.Date()
		if y != refYear || m != refMonth {
			continue
		}
		s.MonthlySpent = s.MonthlySpent.Add(r.Amount)
		addToCategory(monthByCategory, r)

		if wy, w := date.ISOWeek(); wy == refISOYear && w == refWeek {
			s.WeeklySpent = s.WeeklySpent.Add(r.Amount)
		}
	}

	s.ParsedCount = len(parsed)
	if s.TotalCount > 0 {
		s.AverageSpent = s.TotalSpent.DivRound(decimal.NewFromInt(int64(s.TotalCount)), 2)
	}
	s.AmountLeft = budget.Sub(s.MonthlySpent)
	s.ByCategory = sortedTotals(byCategory)
	s.MonthByCategory = sortedTotals(monthByCategory)
	s.Balance = runningBalance(parsed, openingBalance)
	if n := len(s.Balance); n > 0 {
		s.Closing = s.Balance[n-1].Balance
	}

	return s
}

func addToCategory(totals map[string]*core.CategoryTotal, r core.Transaction) {
	ct, ok := totals[r.Category]
	if !ok {
		ct = &core.CategoryTotal{Category: r.Category, Amount: decimal.Zero}
		totals[r.Category] = ct
	}
	ct.Count++
	ct.Amount = ct.Amount.Add(r.Amount)
}

func sortedTotals(totals map[string]*core.CategoryTotal) []core.CategoryTotal {
	out := make([]core.CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// runningBalance orders records by date, ties by id, and subtracts each amount
// from the opening balance in turn.
func runningBalance(parsed []datedTransaction, opening decimal.Decimal) []core.BalancePoint {
	sorted := make([]datedTransaction, len(parsed))
	copy(sorted, parsed)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].date.Equal(sorted[j].date) {
			return sorted[i].date.Before(sorted[j].date)
		}
		return sorted[i].tx.ID < sorted[j].tx.ID
	})

	points := make([]core.BalancePoint, 0, len(sorted))
	balance := opening
	for _, d := range sorted {
		balance = balance.Sub(d.tx.Amount)
		points = append(points, core.BalancePoint{
			TransactionID: d.tx.ID,
			Date:          core.FormatCanonical(d.date),
			Amount:        d.tx.Amount,
			Balance:       balance,
		})
	}
	return points
}
