package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finflow/internal/backend"
	"finflow/internal/core"
	"finflow/internal/services"
	"finflow/internal/storage"

	"github.com/shopspring/decimal"
)

// legacyImporter loads a legacy CSV export into the ledger store.
type legacyImporter interface {
	ImportLegacyCSV(ctx context.Context, r io.Reader) (storage.ImportReport, error)
}

type app struct {
	ledger   *services.Ledger
	importer legacyImporter
	exporter func(ctx context.Context) (*backend.BackendResult, error)
	budget   decimal.Decimal
	out      io.Writer
	today    func() time.Time
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	handlers := map[string]func(context.Context, []string) error{
		"import-csv":       a.importCSV,
		"list":             a.list,
		"add":              a.add,
		"summary":          a.summary,
		"predict":          a.predict,
		"progress":         a.progress,
		"recurring-add":    a.recurringAdd,
		"recurring-list":   a.recurringList,
		"recurring-delete": a.recurringDelete,
		"run-scheduler":    a.runScheduler,
		"export-sheet":     a.exportSheet,
	}
	handler, ok := handlers[command]
	if !ok {
		return fmt.Errorf("unknown command %q", command)
	}
	return handler(ctx, args)
}

func (a *app) now() time.Time {
	if a.today != nil {
		return a.today()
	}
	return time.Now().UTC()
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// userPtr treats 0 as "all users".
func userPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func (a *app) referenceDate(raw string) (time.Time, error) {
	if raw == "" {
		return a.now(), nil
	}
	return core.NormalizeDate(raw)
}

func (a *app) importCSV(ctx context.Context, args []string) error {
	fs := newFlagSet("import-csv")
	path := fs.String("file", "", "legacy CSV export to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("import-csv: -file is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open %s: %w", *path, err)
	}
	defer f.Close()

	report, err := a.importer.ImportLegacyCSV(ctx, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "imported: %d\nduplicates: %d\nskipped: %d\n", report.Imported, report.Duplicates, len(report.Skipped))
	for _, w := range report.Warnings {
		fmt.Fprintf(a.out, "warning: %s\n", w)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(a.out, "skipped: %s\n", s)
	}
	if len(report.UnknownColumns) > 0 {
		fmt.Fprintf(a.out, "ignored columns: %s\n", strings.Join(report.UnknownColumns, ", "))
	}
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	user := fs.Int64("user", 0, "only this user's transactions (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tSOURCE\tDESCRIPTION")
	for _, tx := range a.ledger.ListTransactions(ctx, userPtr(*user)) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.CreatedAt, tx.Category, tx.Amount.StringFixed(2), tx.Source, tx.Description)
	}
	return tw.Flush()
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	amountRaw := fs.String("amount", "", "amount in rupees")
	category := fs.String("category", "", "category")
	description := fs.String("description", "", "description")
	method := fs.String("method", "", "payment method")
	date := fs.String("date", "", "date or timestamp (default now)")
	user := fs.Int64("user", 0, "owning user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n := core.NewTransaction{
		Category:    *category,
		Description: *description,
		Method:      *method,
		CreatedAt:   *date,
		Source:      core.SourceManual,
		UserID:      userPtr(*user),
	}
	if *amountRaw != "" {
		amount, err := core.ParseAmount(*amountRaw)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		n.Amount = &amount
	}

	tx, err := a.ledger.AppendTransaction(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "recorded transaction %d (%s %s on %s)\n", tx.ID, tx.Category, tx.Amount.StringFixed(2), tx.CreatedAt)
	return nil
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := newFlagSet("summary")
	ref := fs.String("ref", "", "reference date (default today)")
	budgetRaw := fs.String("budget", "", "monthly budget (default DEFAULT_BUDGET)")
	user := fs.Int64("user", 0, "only this user's transactions (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reference, err := a.referenceDate(*ref)
	if err != nil {
		return err
	}
	budget := a.budget
	if *budgetRaw != "" {
		if budget, err = core.ParseAmount(*budgetRaw); err != nil {
			return fmt.Errorf("budget: %w", err)
		}
	}

	s, err := a.ledger.Summarize(ctx, reference, budget, userPtr(*user))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "reference\t%s\n", s.Reference)
	fmt.Fprintf(tw, "transactions\t%d (%d without a usable date)\n", s.TotalCount, s.SkippedCount)
	fmt.Fprintf(tw, "total spent\t%s\n", s.TotalSpent.StringFixed(2))
	fmt.Fprintf(tw, "average\t%s\n", s.AverageSpent.StringFixed(2))
	fmt.Fprintf(tw, "largest\t%s\n", s.MaxSpent.StringFixed(2))
	fmt.Fprintf(tw, "smallest\t%s\n", s.MinSpent.StringFixed(2))
	fmt.Fprintf(tw, "this month\t%s\n", s.MonthlySpent.StringFixed(2))
	fmt.Fprintf(tw, "this week\t%s\n", s.WeeklySpent.StringFixed(2))
	fmt.Fprintf(tw, "budget left\t%s of %s\n", s.AmountLeft.StringFixed(2), s.Budget.StringFixed(2))
	fmt.Fprintf(tw, "balance\t%s -> %s\n", s.Opening.StringFixed(2), s.Closing.StringFixed(2))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tAMOUNT")
	for _, c := range s.ByCategory {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Category, c.Count, c.Amount.StringFixed(2))
	}
	return tw.Flush()
}

func (a *app) predict(ctx context.Context, args []string) error {
	fs := newFlagSet("predict")
	incomeRaw := fs.String("income", "", "monthly income")
	if err := fs.Parse(args); err != nil {
		return err
	}
	income, err := services.ParseIncome(*incomeRaw)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tLIMIT\tEXPECTED")
	for _, l := range a.ledger.PredictLimits(ctx, income) {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", l.Category, l.Limit.StringFixed(2), l.ExpectedCount)
	}
	return tw.Flush()
}

func (a *app) progress(ctx context.Context, args []string) error {
	fs := newFlagSet("progress")
	incomeRaw := fs.String("income", "", "monthly income")
	ref := fs.String("ref", "", "reference date (default today)")
	user := fs.Int64("user", 0, "only this user's transactions (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	income, err := services.ParseIncome(*incomeRaw)
	if err != nil {
		return err
	}
	reference, err := a.referenceDate(*ref)
	if err != nil {
		return err
	}

	progress, err := a.ledger.SpendingProgress(ctx, income, reference, userPtr(*user))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSPENT\tLIMIT\tREMAINING\tPERCENT\tSTATUS")
	for _, p := range progress {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n", p.Category, p.Spent.StringFixed(2), p.Limit.StringFixed(2), p.Remaining.StringFixed(2), p.Percent, p.Status)
	}
	return tw.Flush()
}

func (a *app) recurringAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("recurring-add")
	user := fs.Int64("user", 0, "owning user id")
	name := fs.String("name", "", "name")
	category := fs.String("category", "", "category")
	amountRaw := fs.String("amount", "", "amount in rupees")
	day := fs.Int("day", 1, "day of month (1-31, stored as at most 28)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := core.ParseAmount(*amountRaw)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	id, err := a.ledger.AddRecurringExpense(ctx, *user, *name, *category, amount, *day)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created recurring expense %d\n", id)
	return nil
}

func (a *app) recurringList(ctx context.Context, args []string) error {
	fs := newFlagSet("recurring-list")
	user := fs.Int64("user", 0, "owning user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	defs, err := a.ledger.ListRecurringExpenses(ctx, *user)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tAMOUNT\tDAY\tNEXT DUE")
	for _, d := range defs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", d.ID, d.Name, d.Category, d.Amount.StringFixed(2), d.DayOfMonth, d.NextDue.Format(core.DateLayout))
	}
	return tw.Flush()
}

func (a *app) recurringDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("recurring-delete")
	id := fs.Int64("id", 0, "recurring expense id")
	user := fs.Int64("user", 0, "owning user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deleted, err := a.ledger.DeleteRecurringExpense(ctx, *id, *user)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("recurring expense %d: %w", *id, core.ErrNotFound)
	}
	fmt.Fprintf(a.out, "deleted recurring expense %d\n", *id)
	return nil
}

func (a *app) runScheduler(ctx context.Context, args []string) error {
	fs := newFlagSet("run-scheduler")
	todayRaw := fs.String("today", "", "process as of this date (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	today, err := a.referenceDate(*todayRaw)
	if err != nil {
		return err
	}

	report := a.ledger.RunDailyScheduler(ctx, today)
	fmt.Fprintf(a.out, "run %s: checked %d, created %d\n", report.RunID, report.Checked, report.Processed)
	for _, e := range report.Errors {
		fmt.Fprintf(a.out, "failed: %s\n", e)
	}
	return report.Err()
}

func (a *app) exportSheet(ctx context.Context, args []string) (err error) {
	fs := newFlagSet("export-sheet")
	user := fs.Int64("user", 0, "only this user's transactions (0 for all)")
	since := fs.Int64("after-id", 0, "only transactions with a greater id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var txs []core.Transaction
	for _, tx := range a.ledger.ListTransactions(ctx, userPtr(*user)) {
		if tx.ID > *since {
			txs = append(txs, tx)
		}
	}
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "nothing to export")
		return nil
	}

	result, err := a.exporter(ctx)
	if err != nil {
		return err
	}
	if result.Cleanup != nil {
		defer func() {
			if cerr := result.Cleanup(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close %s backend: %w", result.Type, cerr))
			}
		}()
	}
	ref, err := result.Backend.ExportTransactions(ctx, txs)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "exported %d transactions to %s\n", len(txs), ref)
	return nil
}
