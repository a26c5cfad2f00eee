package google

import (
	"errors"
	"testing"
	"time"

	"finflow/internal/core"

	"github.com/shopspring/decimal"
)

func TestParsePayments_ExportedSheet(t *testing.T) {
	values := [][]interface{}{
		{"Payment ID", "Order ID", "Amount", "Category", "Captured At", "User ID", "Status"},
		{"pay_1", "order_1", 499.5, "Shopping", "2024-05-03 09:00:00", "7.0", "captured"},
		{"pay_2", "", "₹120", "", "03-05-2024", "", ""},
		{"pay_3", "", 10, "", "", "", "failed"},
		{"", "", "", "", "", "", ""},
		{"pay_4", "", "abc", "", "", "", ""},
		{"", "", 50, "", "", "", ""},
		{"pay_6", "", 1, "", "yesterday", "", ""},
	}

	payments, rowErrs, err := parsePayments(values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payments: got %d, want 2 (%+v)", len(payments), payments)
	}
	if len(rowErrs) != 3 {
		t.Fatalf("row errors: got %d, want 3 (%v)", len(rowErrs), rowErrs)
	}

	first := payments[0]
	if first.PaymentID != "pay_1" || first.OrderID != "order_1" {
		t.Errorf("ids: got %q/%q", first.PaymentID, first.OrderID)
	}
	if first.AmountMinor != 49950 {
		t.Errorf("amount minor: got %d", first.AmountMinor)
	}
	if first.UserID == nil || *first.UserID != 7 {
		t.Errorf("user id: got %v", first.UserID)
	}
	if want := time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC); !first.CapturedAt.Equal(want) {
		t.Errorf("captured at: got %v, want %v", first.CapturedAt, want)
	}

	if payments[1].AmountMinor != 12000 {
		t.Errorf("rupee-prefixed amount: got %d", payments[1].AmountMinor)
	}
	if !errors.Is(rowErrs[1], core.ErrMissingPaymentID) {
		t.Errorf("expected missing payment id, got %v", rowErrs[1])
	}
	if !errors.Is(rowErrs[2], core.ErrDateFormat) {
		t.Errorf("expected date format error, got %v", rowErrs[2])
	}
}

func TestParsePayments_MissingHeader(t *testing.T) {
	_, _, err := parsePayments([][]interface{}{{"Date", "Description"}, {"2024-05-01", "x"}})
	if err == nil {
		t.Fatal("expected error for missing payment_id/amount header")
	}
}

func TestParsePayments_Empty(t *testing.T) {
	payments, rowErrs, err := parsePayments(nil)
	if err != nil || len(payments) != 0 || len(rowErrs) != 0 {
		t.Fatalf("empty sheet: got %v %v %v", payments, rowErrs, err)
	}
}

func TestTransactionRows(t *testing.T) {
	rows := transactionRows([]core.Transaction{
		{ID: 1, Amount: decimal.RequireFromString("12.5"), Category: "Food", CreatedAt: "2024-05-01T10:00:00", Source: core.SourceManual},
		{ID: 2, Amount: decimal.NewFromInt(3), Category: "Misc", CreatedAt: "garbage", Source: core.SourceExternalSync, ExternalID: "pay_1"},
	})

	if len(rows) != 2 {
		t.Fatalf("rows: got %d", len(rows))
	}
	if rows[0][1] != "2024-05-01" {
		t.Errorf("date: got %v", rows[0][1])
	}
	if rows[0][4] != 12.5 {
		t.Errorf("amount: got %v", rows[0][4])
	}
	if rows[1][1] != "garbage" {
		t.Errorf("unparseable date should be kept verbatim, got %v", rows[1][1])
	}
	if rows[1][7] != "pay_1" {
		t.Errorf("payment id: got %v", rows[1][7])
	}
}
