package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finflow/internal/core"
)

// Store is an in-process payments sheet for local runs and tests.
type Store struct {
	mu       sync.Mutex
	payments []core.ExternalPayment
	exported []core.Transaction
}

func New(payments ...core.ExternalPayment) *Store {
	return &Store{payments: dedupe(payments)}
}

// NewFromFiles seeds payments from base/seed_payments.txt, one per line:
//
//	payment_id,amount[,captured_at[,category]]
//
// Blank lines, comments and malformed lines are ignored.
func NewFromFiles(base string) *Store {
	var payments []core.ExternalPayment
	for _, line := range readLines(filepath.Join(base, "seed_payments.txt")) {
		if p, ok := parseSeedLine(line); ok {
			payments = append(payments, p)
		}
	}
	return New(payments...)
}

// Add records payments as if they had been captured.
func (s *Store) Add(payments ...core.ExternalPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = dedupe(append(s.payments, payments...))
}

func (s *Store) ListPayments(_ context.Context) ([]core.ExternalPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExternalPayment(nil), s.payments...), nil
}

// ExportTransactions stores the records and returns a synthetic row reference.
func (s *Store) ExportTransactions(_ context.Context, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(txs) == 0 {
		return "", nil
	}
	first := len(s.exported) + 1
	s.exported = append(s.exported, txs...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.exported)), nil
}

func (s *Store) Exported() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.exported...)
}

func parseSeedLine(line string) (core.ExternalPayment, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return core.ExternalPayment{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	amount, err := core.ParseAmount(parts[1])
	if err != nil || parts[0] == "" {
		return core.ExternalPayment{}, false
	}
	p := core.ExternalPayment{PaymentID: parts[0], AmountMinor: core.ToMinorUnits(amount)}
	if len(parts) > 2 && parts[2] != "" {
		t, err := core.NormalizeDate(parts[2])
		if err != nil {
			return core.ExternalPayment{}, false
		}
		p.CapturedAt = t
	}
	if len(parts) > 3 {
		p.Category = parts[3]
	}
	return p, true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe keeps the first payment per id, preserving input order.
func dedupe(in []core.ExternalPayment) []core.ExternalPayment {
	seen := map[string]struct{}{}
	out := make([]core.ExternalPayment, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p.PaymentID]; ok {
			continue
		}
		seen[p.PaymentID] = struct{}{}
		out = append(out, p)
	}
	return out
}
