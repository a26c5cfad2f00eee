package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finflow/internal/amqp"
	"finflow/internal/backend"
	"finflow/internal/cli"
	"finflow/internal/log"
	"finflow/internal/services"
	"finflow/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker, "info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	logger.Info("Starting ledger-worker", "ledger_db", cfg.LedgerDBPath)

	repo := cli.InitSQLite(logger, cfg.LedgerDBPath)
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPEventsQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	}

	ledger, caches := cli.NewLedger(logger, cfg, repo, amqpClient)
	defer caches.Stop()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	var source backend.Backend
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to create backend config", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentSheets)).CreateBackend(ctx, backendConfig)
	switch {
	case errors.Is(err, backend.ErrDisabled):
	case err != nil:
		logger.Error("Failed to initialize payments sheet", log.FieldError, err, "backend", backendConfig.Type)
		os.Exit(1)
	default:
		source = result.Backend
		if result.Cleanup != nil {
			defer result.Cleanup()
		}
	}

	if amqpClient == nil && source == nil {
		logger.Error("Nothing to do: set AMQP_URL, GOOGLE_SPREADSHEET_ID or SEED_DIR")
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if amqpClient != nil {
		payments := worker.NewPaymentWorker(ledger, logger.WithComponent(log.ComponentAMQP))
		g.Go(func() error {
			err := amqpClient.ConsumePayments(gctx, payments.HandlePaymentMessage)
			stats := payments.Stats()
			logger.Info("Payment consumer stopped",
				"imported", stats.Imported,
				"duplicates", stats.Duplicates,
				"rejected", stats.Rejected)
			return err
		})
	} else {
		logger.Info("AMQP disabled - payment events will not be consumed")
	}

	if source != nil {
		processor := services.NewSyncProcessor(source, ledger, services.SyncProcessorConfig{
			PollInterval: cfg.SheetPollInterval,
			BatchSize:    cfg.SyncBatchSize,
		})
		g.Go(func() error {
			return processor.Run(gctx)
		})
	} else {
		logger.Info("Payments sheet disabled - no GOOGLE_SPREADSHEET_ID or SEED_DIR provided")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger-worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger-worker shutdown complete")
}
