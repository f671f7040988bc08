package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

const paymentColumns = `id, reservation_id, customer_id, paid_by, amount_cents, paid_at, method, status,
	gateway_ref, gateway_digest, card_holder, card_no, card_expiry, bank_name, evidence, is_deleted, created_at`

// PaymentRepo persists payment records.  A gateway delivery is stored once:
// the (reservation_id, gateway_digest) unique key rejects repeats with
// ErrDuplicate.
type PaymentRepo struct {
	db sqlx.ExtContext
}

// NewPaymentRepo returns a PaymentRepo on the pool or a transaction.
func NewPaymentRepo(db sqlx.ExtContext) *PaymentRepo { return &PaymentRepo{db: db} }

// Insert stores a payment record.
func (r *PaymentRepo) Insert(ctx context.Context, p *model.PaymentRecord) error {
	const q = `INSERT INTO payments (
		id, reservation_id, customer_id, paid_by, amount_cents, paid_at, method, status,
		gateway_ref, gateway_digest, card_holder, card_no, card_expiry, bank_name, evidence, created_at
	) VALUES (
		:id, :reservation_id, :customer_id, :paid_by, :amount_cents, :paid_at, :method, :status,
		:gateway_ref, :gateway_digest, :card_holder, :card_no, :card_expiry, :bank_name, :evidence, :created_at
	)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, q, p); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Get loads one payment by id.
func (r *PaymentRepo) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	var p model.PaymentRecord
	err := sqlx.GetContext(ctx, r.db, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// ListByReservation returns the reservation's non-deleted payments in the
// order they were created.
func (r *PaymentRepo) ListByReservation(ctx context.Context, reservationID string) ([]model.PaymentRecord, error) {
	out := []model.PaymentRecord{}
	err := sqlx.SelectContext(ctx, r.db, &out,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE reservation_id = ? AND is_deleted = 0
		 ORDER BY created_at ASC, id ASC`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

// FindByDigest returns the payment recorded for a gateway delivery.
func (r *PaymentRepo) FindByDigest(ctx context.Context, reservationID, digest string) (*model.PaymentRecord, error) {
	var p model.PaymentRecord
	err := sqlx.GetContext(ctx, r.db, &p,
		`SELECT `+paymentColumns+` FROM payments WHERE reservation_id = ? AND gateway_digest = ?`,
		reservationID, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment by digest: %w", err)
	}
	return &p, nil
}

// UpdateStatus moves a payment between statuses; ErrConflict when the stored
// status is no longer from.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id string, from, to model.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
