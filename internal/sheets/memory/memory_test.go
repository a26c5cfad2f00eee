package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finflow/internal/core"
)

func TestMemoryStoreListAndExport(t *testing.T) {
	s := New(core.ExternalPayment{PaymentID: "a"}, core.ExternalPayment{PaymentID: "b"}, core.ExternalPayment{PaymentID: "a"})
	s.Add(core.ExternalPayment{PaymentID: "b"}, core.ExternalPayment{PaymentID: "c"})

	payments, err := s.ListPayments(context.Background())
	if err != nil || len(payments) != 3 {
		t.Fatalf("unexpected list: %v err=%v", payments, err)
	}

	ref, err := s.ExportTransactions(context.Background(), []core.Transaction{{ID: 1}, {ID: 2}})
	if err != nil || ref != "mem:1-2" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	ref, _ = s.ExportTransactions(context.Background(), []core.Transaction{{ID: 3}})
	if ref != "mem:3-3" {
		t.Fatalf("unexpected second export ref %q", ref)
	}
	if len(s.Exported()) != 3 {
		t.Fatalf("exported: %v", s.Exported())
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	payments, _ := s.ListPayments(context.Background())
	if len(payments) != 0 {
		t.Fatalf("expected no payments when file missing, got %v", payments)
	}

	content := "# payment_id,amount,captured_at,category\npay_1,499.50,2024-05-03,Shopping\npay_1,1\npay_2,abc\nbroken\npay_3,20\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_payments.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	payments, _ = NewFromFiles(dir).ListPayments(context.Background())
	if len(payments) != 2 {
		t.Fatalf("unexpected payments: %+v", payments)
	}
	if payments[0].AmountMinor != 49950 || payments[0].Category != "Shopping" {
		t.Fatalf("unexpected first payment: %+v", payments[0])
	}
	if !payments[0].CapturedAt.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected captured at: %v", payments[0].CapturedAt)
	}
	if payments[1].PaymentID != "pay_3" {
		t.Fatalf("unexpected second payment: %+v", payments[1])
	}
}
