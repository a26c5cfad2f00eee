package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finflow/internal/backend"
	"finflow/internal/cli"
	"finflow/internal/log"
)

const usage = `usage: ledger <command> [flags]

commands:
  import-csv        import a legacy transactions CSV export
  list              list transactions
  add               append a manual transaction
  summary           aggregate statistics for a reference date
  predict           suggested category limits for a monthly income
  progress          spending against the suggested limits
  recurring-add     define a monthly recurring expense
  recurring-list    list a user's recurring expenses
  recurring-delete  remove a recurring expense
  run-scheduler     materialize due recurring expenses
  export-sheet      append transactions to the export sheet

run "ledger <command> -h" for command flags`

func main() {
	cli.LoadEnvFile()

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	logger := cli.SetupLogger(log.ComponentCLI, "warn")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentCLI, cfg.LogLevel)

	repo := cli.InitSQLite(logger, cfg.LedgerDBPath)
	defer repo.Close()

	publisher := cli.InitPublisher(logger, cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	ledger, caches := cli.NewLedger(logger, cfg, repo, publisher)
	defer caches.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		ledger:   ledger,
		importer: repo,
		budget:   cfg.DefaultBudget,
		out:      os.Stdout,
		exporter: func(ctx context.Context) (*backend.BackendResult, error) {
			backendConfig, err := backend.FromAppConfig(cfg)
			if err != nil {
				return nil, err
			}
			if backendConfig.Type != backend.SheetsBackend {
				return nil, fmt.Errorf("export-sheet needs GOOGLE_SPREADSHEET_ID: %w", backend.ErrDisabled)
			}
			return backend.NewFactory(logger.WithComponent(log.ComponentSheets)).CreateBackend(ctx, backendConfig)
		},
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
