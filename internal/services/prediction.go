package services

import (
	"strings"

	"finflow/internal/core"

	"github.com/shopspring/decimal"
)

type categoryShare struct {
	category string
	percent  decimal.Decimal
	count    int
}

// spendingShares is the share of monthly income and the expected number of
// transactions per month for each budgeted category.
var spendingShares = []categoryShare{
	{"Food", decimal.RequireFromString("0.30"), 15},
	{"Transport", decimal.RequireFromString("0.15"), 12},
	{"Shopping", decimal.RequireFromString("0.20"), 9},
	{"Utilities", decimal.RequireFromString("0.25"), 6},
	{"Entertainment", decimal.RequireFromString("0.10"), 3},
}

var fallbackShare = categoryShare{percent: decimal.RequireFromString("0.10"), count: 5}

// PredictLimits suggests a monthly limit for each budgeted category.
func PredictLimits(income decimal.Decimal) []core.CategoryLimit {
	limits := make([]core.CategoryLimit, 0, len(spendingShares))
	for _, share := range spendingShares {
		limits = append(limits, share.limit(share.category, income))
	}
	return limits
}

// PredictLimitsFor suggests limits for the given categories. Categories without
// a known share get 10% of income and 5 transactions.
func PredictLimitsFor(income decimal.Decimal, categories []string) []core.CategoryLimit {
	limits := make([]core.CategoryLimit, 0, len(categories))
	for _, c := range categories {
		share := fallbackShare
		for _, s := range spendingShares {
			if strings.EqualFold(s.category, c) {
				share = s
				break
			}
		}
		limits = append(limits, share.limit(c, income))
	}
	return limits
}

func (s categoryShare) limit(category string, income decimal.Decimal) core.CategoryLimit {
	return core.CategoryLimit{
		Category:      category,
		Limit:         income.Mul(s.percent).Round(2),
		ExpectedCount: s.count,
	}
}

// ParseIncome reads a monthly income, which must be a number greater than zero.
func ParseIncome(s string) (decimal.Decimal, error) {
	income, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if err != nil || !income.IsPositive() {
		return decimal.Zero, &core.ValidationError{Field: "income", Err: core.ErrInvalidIncome}
	}
	return income, nil
}

// SpendingProgress compares month-to-date spend per category with its limit.
// Income is not a spending category and is skipped.
func SpendingProgress(limits []core.CategoryLimit, summary core.Summary) []core.CategoryProgress {
	spent := make(map[string]core.CategoryTotal, len(summary.MonthByCategory))
	for _, ct := range summary.MonthByCategory {
		spent[ct.Category] = ct
	}

	hundred := decimal.NewFromInt(100)
	out := make([]core.CategoryProgress, 0, len(limits))
	for _, l := range limits {
		if strings.EqualFold(l.Category, "Income") {
			continue
		}
		ct := spent[l.Category]
		p := core.CategoryProgress{
			Category:  l.Category,
			Limit:     l.Limit,
			Spent:     ct.Amount,
			Remaining: decimal.Max(decimal.Zero, l.Limit.Sub(ct.Amount)),
			Overspent: decimal.Max(decimal.Zero, ct.Amount.Sub(l.Limit)),
			Count:     ct.Count,
			Expected:  l.ExpectedCount,
		}
		switch {
		case l.Limit.IsPositive():
			p.Percent = int(ct.Amount.Mul(hundred).DivRound(l.Limit, 0).IntPart())
		case ct.Amount.IsPositive():
			p.Percent = 100
		}
		if p.Percent > 100 {
			p.Percent = 100
		}
		switch {
		case p.Percent > 90:
			p.Status = core.ProgressDanger
		case p.Percent > 75:
			p.Status = core.ProgressWarning
		default:
			p.Status = core.ProgressGood
		}
		out = append(out, p)
	}
	return out
}
