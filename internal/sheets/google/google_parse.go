package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finflow/internal/core"
)

// Header aliases accepted in the payments sheet, lowercased.
var paymentHeaders = map[string][]string{
	"payment_id":  {"payment_id", "payment id", "razorpay_payment_id"},
	"order_id":    {"order_id", "order id", "razorpay_order_id"},
	"amount":      {"amount"},
	"category":    {"category"},
	"description": {"description"},
	"method":      {"method"},
	"captured_at": {"captured_at", "captured at", "created_at", "date"},
	"user_id":     {"user_id", "user id"},
	"status":      {"status", "payment_status"},
}

// parsePayments converts a values matrix (as returned by the Sheets API) into
// captured payments. Amounts are in rupees. Rows whose status is set to anything
// other than "captured" are ignored; malformed rows are reported per row.
func parsePayments(values [][]interface{}) ([]core.ExternalPayment, []error, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	headers := toStrings(values[0])
	cols := map[string]int{}
	for field, aliases := range paymentHeaders {
		cols[field] = -1
		for _, alias := range aliases {
			if idx := indexOf(headers, alias); idx != -1 {
				cols[field] = idx
				break
			}
		}
	}
	if cols["payment_id"] == -1 || cols["amount"] == -1 {
		return nil, nil, fmt.Errorf("unexpected payments header: need payment_id and amount; got headers=%v", headers)
	}

	var (
		out     []core.ExternalPayment
		rowErrs []error
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		get := func(field string) string { return safeGet(row, cols[field]) }

		paymentID := get("payment_id")
		if paymentID == "" && get("amount") == "" {
			continue
		}
		if status := get("status"); status != "" && !strings.EqualFold(status, "captured") {
			continue
		}

		p, err := paymentFromRow(get)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		out = append(out, p)
	}
	return out, rowErrs, nil
}

func paymentFromRow(get func(string) string) (core.ExternalPayment, error) {
	paymentID := get("payment_id")
	if paymentID == "" {
		return core.ExternalPayment{}, core.ErrMissingPaymentID
	}

	amount, err := core.ParseAmount(strings.TrimPrefix(get("amount"), "₹"))
	if err != nil {
		return core.ExternalPayment{}, fmt.Errorf("amount %q: %w", get("amount"), err)
	}

	var captured time.Time
	if raw := get("captured_at"); raw != "" {
		captured, err = parseSheetTime(raw)
		if err != nil {
			return core.ExternalPayment{}, err
		}
	}

	var userID *int64
	if raw := strings.TrimSuffix(get("user_id"), ".0"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.ExternalPayment{}, errors.New("user_id is not an integer")
		}
		userID = &id
	}

	return core.ExternalPayment{
		PaymentID:   paymentID,
		OrderID:     get("order_id"),
		AmountMinor: core.ToMinorUnits(amount),
		Category:    get("category"),
		Description: get("description"),
		Method:      get("method"),
		CapturedAt:  captured,
		UserID:      userID,
	}, nil
}

// parseSheetTime accepts the sheet's own "date time" rendering before the
// ledger's input formats.
func parseSheetTime(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t, nil
	}
	return core.NormalizeDate(raw)
}

// transactionRows lays out records for the export sheet:
// ID, Date, Category, Description, Amount, Method, Source, Payment ID.
func transactionRows(txs []core.Transaction) [][]interface{} {
	rows := make([][]interface{}, 0, len(txs))
	for _, tx := range txs {
		date := tx.CreatedAt
		if t, err := tx.Date(); err == nil {
			date = t.Format(core.DateLayout)
		}
		rows = append(rows, []interface{}{
			tx.ID,
			date,
			tx.Category,
			tx.Description,
			tx.Amount.InexactFloat64(),
			tx.Method,
			string(tx.Source),
			tx.ExternalID,
		})
	}
	return rows
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
