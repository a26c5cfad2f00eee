// Package cli provides common CLI initialization utilities shared by
// cmd/ledger, cmd/ledger-worker, and cmd/recurring-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finflow/internal/amqp"
	"finflow/internal/cache"
	"finflow/internal/config"
	"finflow/internal/core"
	"finflow/internal/log"
	"finflow/internal/services"
	"finflow/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger initializes structured logging for a binary and sets it as the
// default logger.
func SetupLogger(component, level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitPublisher connects to the broker when AMQP_URL is set. A nil client
// means events are not published.
func InitPublisher(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL not set, transaction events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPEventsQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, transaction events will not be published", log.FieldError, err)
		return nil
	}
	return client
}

// NewLedger wires the ledger facade over repo with the configured opening
// balance, summary cache and optional publisher. The returned cache manager
// must be stopped by the caller.
func NewLedger(logger *log.Logger, cfg *config.Config, repo services.LedgerStore, publisher *amqp.Client) (*services.Ledger, *cache.Manager) {
	opts := []services.LedgerOption{
		services.WithLogger(logger),
		services.WithOpeningBalance(cfg.OpeningBalance),
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}

	manager := cache.NewManager()
	if cfg.SummaryCacheSize > 0 {
		summaries := cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
		manager.Register(summaries)
		opts = append(opts, services.WithSummaryCache(summaries))
	}
	manager.StartCleanup(time.Minute)

	return services.NewLedger(repo, opts...), manager
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
