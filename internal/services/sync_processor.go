package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finflow/internal/core"
)

// PaymentSource lists captured payments from an external system, such as a
// payments spreadsheet. It may return payments that were already imported.
type PaymentSource interface {
	ListPayments(ctx context.Context) ([]core.ExternalPayment, error)
}

// PaymentImporter records a captured payment at most once.
type PaymentImporter interface {
	ImportExternal(ctx context.Context, p core.ExternalPayment) (core.Transaction, bool, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often the source is read (default: 5m)
	PollInterval time.Duration

	// BatchSize caps the payments imported per poll; the rest wait for the next one (default: 100)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    100,
	}
}

// SyncStats counts what the processor has done since it was created.
type SyncStats struct {
	Polls      int
	Imported   int
	Duplicates int
	Failed     int
	LastPoll   time.Time
	LastError  string
}

// SyncProcessor periodically pulls payments from a source into the ledger.
// Imports are idempotent, so a payment that fails is simply retried on the next poll.
type SyncProcessor struct {
	source   PaymentSource
	importer PaymentImporter
	config   SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   SyncStats
}

func NewSyncProcessor(source PaymentSource, importer PaymentImporter, config SyncProcessorConfig) *SyncProcessor {
	defaults := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &SyncProcessor{
		source:   source,
		importer: importer,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Payment sync started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Payment sync stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Payment sync stop timed out")
		return ctx.Err()
	}

	return nil
}

// Run polls until ctx is cancelled. It is the blocking counterpart of Start
// for callers that manage goroutines themselves.
func (p *SyncProcessor) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		return err
	}
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) Stats() SyncStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	// Poll immediately on startup
	p.PollOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce reads the source and imports up to BatchSize new payments.
func (p *SyncProcessor) PollOnce(ctx context.Context) SyncStats {
	var round SyncStats
	round.Polls = 1
	round.LastPoll = time.Now()

	payments, err := p.source.ListPayments(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read payment source", "error", err)
		round.LastError = err.Error()
		p.record(round)
		return round
	}

	for _, payment := range payments {
		if round.Imported >= p.config.BatchSize {
			break
		}
		if ctx.Err() != nil {
			break
		}

		_, created, err := p.importer.ImportExternal(ctx, payment)
		switch {
		case err != nil:
			round.Failed++
			round.LastError = err.Error()
			slog.WarnContext(ctx, "Payment import failed",
				"payment_id", payment.PaymentID,
				"error", err)
		case created:
			round.Imported++
		default:
			round.Duplicates++
		}
	}

	if round.Imported > 0 || round.Failed > 0 {
		slog.InfoContext(ctx, "Payment sync round complete",
			"seen", len(payments),
			"imported", round.Imported,
			"duplicates", round.Duplicates,
			"failed", round.Failed)
	}

	p.record(round)
	return round
}

func (p *SyncProcessor) record(round SyncStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Polls += round.Polls
	p.stats.Imported += round.Imported
	p.stats.Duplicates += round.Duplicates
	p.stats.Failed += round.Failed
	p.stats.LastPoll = round.LastPoll
	if round.LastError != "" {
		p.stats.LastError = round.LastError
	}
}
