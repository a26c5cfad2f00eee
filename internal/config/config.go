package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Database
	LedgerDBPath string

	// AMQP
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string // payment-captured events
	AMQPEventsQueue string // transaction-recorded events

	// Google Sheets
	GoogleSpreadsheetID      string
	GooglePaymentsSheet      string
	GoogleExportSheet        string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SeedDir                  string // local payments seed used when no spreadsheet is set

	// Ledger
	DefaultBudget    decimal.Decimal
	OpeningBalance   decimal.Decimal
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration

	// Workers
	RecurringInterval time.Duration
	SheetPollInterval time.Duration
	SyncBatchSize     int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		LedgerDBPath: getEnv("LEDGER_DB_PATH", "./data/ledger.db"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "finflow"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "payments_captured"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "transactions_recorded"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GooglePaymentsSheet:      getEnv("GOOGLE_PAYMENTS_SHEET", "Payments"),
		GoogleExportSheet:        getEnv("GOOGLE_EXPORT_SHEET", "Ledger"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		SeedDir:                  getEnv("SEED_DIR", ""),

		DefaultBudget:    getEnvDecimal("DEFAULT_BUDGET", decimal.NewFromInt(5000)),
		OpeningBalance:   getEnvDecimal("OPENING_BALANCE", decimal.NewFromInt(100000)),
		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 64),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),
		SheetPollInterval: getEnvDuration("SHEET_POLL_INTERVAL", 5*time.Minute),
		SyncBatchSize:     getEnvInt("SYNC_BATCH_SIZE", 100),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.LedgerDBPath == "" {
		errors = append(errors, "ledger database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.LedgerDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create ledger database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GooglePaymentsSheet == "" {
			errors = append(errors, "Google payments sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.DefaultBudget.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid default budget %s: must not be negative", c.DefaultBudget))
	}
	if c.SummaryCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must not be negative", c.SummaryCacheSize))
	}

	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if c.SheetPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sheet poll interval %v: must be at least 1 second", c.SheetPollInterval))
	} else if c.SheetPollInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sheet poll interval %v: must be at most 24 hours", c.SheetPollInterval))
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
