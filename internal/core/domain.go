package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceManual       Source = "manual"
	SourceRecurring    Source = "recurring"
	SourceExternalSync Source = "external-sync"
)

const (
	DefaultCategory    = "Misc"
	DefaultDescription = "No description"
	DefaultStatus      = "completed"

	// MaxDayOfMonth keeps recurring days inside every month, February included.
	MaxDayOfMonth = 28
)

// KnownCategories is the category set offered to users. Free text is still accepted.
var KnownCategories = []string{"Food", "Transport", "Shopping", "Utilities", "Entertainment", "Income"}

// PaymentMethods lists the payment channels offered to users.
var PaymentMethods = []string{"Cash", "Credit Card", "Debit Card", "UPI", "Net Banking", "Razorpay"}

type (
	Source string

	// Transaction is one persisted ledger record.
	Transaction struct {
		ID          int64
		Amount      decimal.Decimal
		Category    string
		Description string
		Method      string
		CreatedAt   string // canonical form, see FormatCanonical
		Source      Source
		ExternalID  string // payment identifier for external-sync records
		Status      string
		UserID      *int64
	}

	// NewTransaction carries caller-supplied fields for an append.
	// Empty fields take their defaults.
	NewTransaction struct {
		Amount      *decimal.Decimal
		Category    string
		Description string
		Method      string
		CreatedAt   string // any accepted input format; empty means now
		Source      Source
		ExternalID  string
		Status      string
		UserID      *int64
	}

	// ExternalPayment is a captured payment reported by a gateway or a synced sheet.
	// Amounts arrive in minor units (paise).
	ExternalPayment struct {
		PaymentID   string
		OrderID     string
		AmountMinor int64
		Category    string
		Description string
		Method      string
		CapturedAt  time.Time
		UserID      *int64
	}

	RecurringExpense struct {
		ID            int64
		UserID        int64
		Name          string
		Category      string
		Amount        decimal.Decimal
		DayOfMonth    int
		NextDue       time.Time
		LastProcessed time.Time // zero when never processed
		CreatedAt     time.Time
	}
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceRecurring, SourceExternalSync:
		return true
	default:
		return false
	}
}

// Build validates the caller fields and returns a transaction with defaults applied
// and CreatedAt in canonical form. Amount is rounded to paise, the precision the
// store keeps. The ID is left for the store to assign.
func (n NewTransaction) Build(now time.Time) (Transaction, error) {
	category := strings.TrimSpace(n.Category)
	if category == "" {
		return Transaction{}, &ValidationError{Field: "category", Err: ErrMissingCategory}
	}
	if n.Amount == nil {
		return Transaction{}, &ValidationError{Field: "amount", Err: ErrMissingAmount}
	}
	if n.Amount.IsNegative() {
		return Transaction{}, &ValidationError{Field: "amount", Err: ErrNegativeAmount}
	}

	created := FormatCanonical(now)
	if raw := strings.TrimSpace(n.CreatedAt); raw != "" {
		t, err := NormalizeDate(raw)
		if err != nil {
			return Transaction{}, &ValidationError{Field: "created_at", Err: err}
		}
		created = FormatCanonical(t)
	}

	source := n.Source
	if source == "" {
		source = SourceManual
	}
	if !source.Valid() {
		return Transaction{}, &ValidationError{Field: "source", Err: ErrInvalidSource}
	}

	description := strings.TrimSpace(n.Description)
	if description == "" {
		description = DefaultDescription
	}
	status := strings.TrimSpace(n.Status)
	if status == "" {
		status = DefaultStatus
	}

	return Transaction{
		Amount:      n.Amount.Round(2),
		Category:    category,
		Description: description,
		Method:      strings.TrimSpace(n.Method),
		CreatedAt:   created,
		Source:      source,
		ExternalID:  strings.TrimSpace(n.ExternalID),
		Status:      status,
		UserID:      n.UserID,
	}, nil
}

// Date returns the normalized CreatedAt.
func (t Transaction) Date() (time.Time, error) {
	return NormalizeDate(t.CreatedAt)
}

// ToNewTransaction converts a captured payment into an external-sync append request.
func (p ExternalPayment) ToNewTransaction() NewTransaction {
	amount := FromMinorUnits(p.AmountMinor)
	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = "Income"
	}
	description := strings.TrimSpace(p.Description)
	if description == "" {
		description = "Razorpay payment: " + p.PaymentID
	}
	method := strings.TrimSpace(p.Method)
	if method == "" {
		method = "Razorpay"
	}
	var created string
	if !p.CapturedAt.IsZero() {
		created = FormatCanonical(p.CapturedAt)
	}
	return NewTransaction{
		Amount:      &amount,
		Category:    category,
		Description: description,
		Method:      method,
		CreatedAt:   created,
		Source:      SourceExternalSync,
		ExternalID:  p.PaymentID,
		Status:      DefaultStatus,
		UserID:      p.UserID,
	}
}

// ClampDayOfMonth bounds a recurring day to [1, MaxDayOfMonth].
func ClampDayOfMonth(day int) int {
	if day < 1 {
		return 1
	}
	if day > MaxDayOfMonth {
		return MaxDayOfMonth
	}
	return day
}

func (re RecurringExpense) Validate() error {
	if re.UserID == 0 {
		return &ValidationError{Field: "user_id", Err: ErrMissingOwner}
	}
	if len(strings.TrimSpace(re.Name)) == 0 {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if len(re.Name) > 200 {
		return &ValidationError{Field: "name", Err: ErrNameTooLong}
	}
	if strings.TrimSpace(re.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrMissingCategory}
	}
	if !re.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if re.DayOfMonth < 1 || re.DayOfMonth > 31 {
		return &ValidationError{Field: "day_of_month", Err: ErrInvalidDay}
	}
	return nil
}

// OccurrenceKey identifies one materialization of a recurring expense in the ledger.
func (re RecurringExpense) OccurrenceKey(due time.Time) string {
	return fmt.Sprintf("recurring:%d:%s", re.ID, due.Format(DateLayout))
}
