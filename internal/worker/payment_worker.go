package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"finflow/internal/amqp"
	"finflow/internal/core"
	"finflow/internal/log"
	"finflow/internal/services"
)

// PaymentWorker imports payment-captured messages into the ledger.
type PaymentWorker struct {
	importer services.PaymentImporter
	logger   *log.Logger

	handled    atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
}

// PaymentWorkerStats counts settled messages since the worker started.
type PaymentWorkerStats struct {
	Imported   int64
	Duplicates int64
	Rejected   int64
}

func NewPaymentWorker(importer services.PaymentImporter, logger *log.Logger) *PaymentWorker {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentWorker})
	}
	return &PaymentWorker{importer: importer, logger: logger}
}

// HandlePaymentMessage imports one captured payment. Redelivered payments are
// acknowledged without a second ledger record. Validation failures wrap
// amqp.ErrReject so the message is dropped; store failures are returned as is
// so the broker redelivers.
func (w *PaymentWorker) HandlePaymentMessage(ctx context.Context, msg *amqp.PaymentCapturedMessage) error {
	logger := w.logger.With(log.FieldMessageID, msg.MessageID)
	ctx = log.NewContext(ctx, logger)
	logger.InfoContext(ctx, "Processing payment message", log.FieldExternalID, msg.PaymentID)

	tx, created, err := w.importer.ImportExternal(ctx, msg.ToExternalPayment())
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			w.rejected.Add(1)
			return fmt.Errorf("import payment %s: %w: %w", msg.PaymentID, amqp.ErrReject, err)
		}
		return fmt.Errorf("import payment %s: %w", msg.PaymentID, err)
	}

	if !created {
		w.duplicates.Add(1)
		logger.InfoContext(ctx, "Payment already in ledger", log.FieldExternalID, msg.PaymentID)
		return nil
	}

	w.handled.Add(1)
	logger.InfoContext(ctx, "Payment imported",
		log.FieldExternalID, msg.PaymentID,
		log.FieldTransactionID, tx.ID)
	return nil
}

func (w *PaymentWorker) Stats() PaymentWorkerStats {
	return PaymentWorkerStats{
		Imported:   w.handled.Load(),
		Duplicates: w.duplicates.Load(),
		Rejected:   w.rejected.Load(),
	}
}
