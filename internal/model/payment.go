package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PaymentMethod is how a charge was settled.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ParsePaymentMethod accepts any casing and "-" as a separator.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "-", "_"))
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBankTransfer:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, raw)
}

// StringList is stored as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("string list: unsupported column type %T", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = out
	return nil
}

// PaymentRecord is one attempted or settled charge against a reservation,
// stored in the `payments` table.  Records are immutable after insert
// except for the refund flow, which moves PAID to REFUNDED.
//
// Fields:
//
//	CustomerID    – driver the reservation belongs to.
//	PaidBy        – user who handed over the money (staff for cash).
//	AmountCents   – never negative.
//	GatewayRef    – gateway payment id; empty for cash.
//	GatewayDigest – digest of the gateway delivery, used to drop repeats.
//	CardNo        – masked card number, receipt only.
//	Evidence      – URLs of receipt images.
type PaymentRecord struct {
	ID            string        `db:"id" json:"id"`
	ReservationID string        `db:"reservation_id" json:"reservation_id"`
	CustomerID    uint64        `db:"customer_id" json:"customer_id"`
	PaidBy        uint64        `db:"paid_by" json:"paid_by"`
	AmountCents   int64         `db:"amount_cents" json:"amount_cents"`
	PaidAt        time.Time     `db:"paid_at" json:"paid_at"`
	Method        PaymentMethod `db:"method" json:"method"`
	Status        PaymentStatus `db:"status" json:"status"`
	GatewayRef    string        `db:"gateway_ref" json:"gateway_ref,omitempty"`
	GatewayDigest *string       `db:"gateway_digest" json:"-"`
	CardHolder    string        `db:"card_holder" json:"card_holder,omitempty"`
	CardNo        string        `db:"card_no" json:"card_no,omitempty"`
	CardExpiry    string        `db:"card_expiry" json:"card_expiry,omitempty"`
	BankName      string        `db:"bank_name" json:"bank_name,omitempty"`
	Evidence      StringList    `db:"evidence" json:"evidence"`
	IsDeleted     bool          `db:"is_deleted" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}
