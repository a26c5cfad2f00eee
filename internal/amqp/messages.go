package amqp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finflow/internal/core"

	"github.com/google/uuid"
)

// PaymentCapturedMessage is published by the payment gateway bridge once a
// payment is captured. Amounts are in minor units (paise).
type PaymentCapturedMessage struct {
	MessageID   string    `json:"message_id,omitempty"`
	PaymentID   string    `json:"payment_id"`
	OrderID     string    `json:"order_id,omitempty"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Method      string    `json:"method,omitempty"`
	Status      string    `json:"status,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
	UserID      *int64    `json:"user_id,omitempty"`
}

func PaymentCapturedMessageFromJSON(data []byte) (*PaymentCapturedMessage, error) {
	var msg PaymentCapturedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate rejects messages that can never be imported.
func (m *PaymentCapturedMessage) Validate() error {
	if strings.TrimSpace(m.PaymentID) == "" {
		return fmt.Errorf("payment_id: %w", core.ErrMissingPaymentID)
	}
	if m.Amount < 0 {
		return fmt.Errorf("amount: %w", core.ErrNegativeAmount)
	}
	if m.Currency != "" && !strings.EqualFold(m.Currency, "INR") {
		return fmt.Errorf("unsupported currency %q", m.Currency)
	}
	if m.Status != "" && !strings.EqualFold(m.Status, "captured") {
		return fmt.Errorf("payment %s not captured: status %q", m.PaymentID, m.Status)
	}
	return nil
}

func (m *PaymentCapturedMessage) ToExternalPayment() core.ExternalPayment {
	return core.ExternalPayment{
		PaymentID:   strings.TrimSpace(m.PaymentID),
		OrderID:     m.OrderID,
		AmountMinor: m.Amount,
		Category:    m.Category,
		Description: m.Description,
		Method:      m.Method,
		CapturedAt:  m.CapturedAt.UTC(),
		UserID:      m.UserID,
	}
}

// TransactionRecordedMessage announces a committed ledger write.
type TransactionRecordedMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID int64     `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Source        string    `json:"source"`
	ExternalID    string    `json:"external_id,omitempty"`
	CreatedAt     string    `json:"created_at"`
	UserID        *int64    `json:"user_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(tx core.Transaction) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		MessageID:     uuid.NewString(),
		TransactionID: tx.ID,
		Amount:        tx.Amount.StringFixed(2),
		Category:      tx.Category,
		Description:   tx.Description,
		Source:        string(tx.Source),
		ExternalID:    tx.ExternalID,
		CreatedAt:     tx.CreatedAt,
		UserID:        tx.UserID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
