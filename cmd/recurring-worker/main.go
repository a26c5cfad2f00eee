package main

import (
	"time"

	"finflow/internal/cli"
	"finflow/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentScheduler, "info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentScheduler, cfg.LogLevel)

	logger.Info("Starting recurring-worker",
		"interval", cfg.RecurringInterval,
		"ledger_db", cfg.LedgerDBPath)

	repo := cli.InitSQLite(logger, cfg.LedgerDBPath)
	defer repo.Close()

	// Transactions created by the scheduler are announced to the broker when configured
	publisher := cli.InitPublisher(logger, cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	ledger, caches := cli.NewLedger(logger, cfg, repo, publisher)
	defer caches.Stop()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	run := func(now time.Time) {
		report := ledger.RunDailyScheduler(ctx, now)
		if err := report.Err(); err != nil {
			logger.Error("Recurring processing finished with errors",
				log.FieldRunID, report.RunID,
				"created", report.Processed,
				"failed", len(report.Errors),
				log.FieldError, err)
			return
		}
		logger.Info("Recurring processing complete",
			log.FieldRunID, report.RunID,
			"checked", report.Checked,
			"created", report.Processed,
			"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
	}

	// Run initial processing on startup to catch up on missed days
	run(time.Now().UTC())

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Recurring-worker shutdown complete")
			return
		case now := <-ticker.C:
			run(now.UTC())
		}
	}
}
