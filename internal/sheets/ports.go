package sheets

import (
	"context"

	"finflow/internal/core"
)

// Ports for outbound adapters.
type (
	// PaymentReader lists captured payments kept outside the ledger.
	// Rows may repeat across calls; the ledger deduplicates by payment id.
	PaymentReader interface {
		ListPayments(ctx context.Context) ([]core.ExternalPayment, error)
	}

	// TransactionExporter copies ledger records to a shared report.
	TransactionExporter interface {
		ExportTransactions(ctx context.Context, txs []core.Transaction) (rowRef string, err error)
	}
)
