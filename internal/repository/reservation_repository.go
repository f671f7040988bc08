package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// Active-booking windows used by FindActiveByVehicle.
const (
	PendingHoldWindow   = 5 * time.Minute
	ConfirmedGraceAfter = time.Hour
)

const reservationColumns = `id, slot_id, parking_area_id, user_id, vehicle_type_id, created_by,
	rating_id, kind, hourly_rate_cents, vehicle_no, mobile, start_at, end_at,
	total_amount_cents, status, payment_status, is_parked, is_deleted, created_at, updated_at`

// ReservationRepo persists reservations.  Status changes are conditional on
// the status the caller observed so two concurrent transitions cannot both
// apply.
type ReservationRepo struct {
	db sqlx.ExtContext
}

// NewReservationRepo returns a ReservationRepo on the pool or a transaction.
func NewReservationRepo(db sqlx.ExtContext) *ReservationRepo { return &ReservationRepo{db: db} }

// Insert stores a new reservation.  ID and timestamps must be set.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (
		id, slot_id, parking_area_id, user_id, vehicle_type_id, created_by, rating_id, kind,
		hourly_rate_cents, vehicle_no, mobile, start_at, end_at, status, payment_status,
		is_parked, created_at, updated_at
	) VALUES (
		:id, :slot_id, :parking_area_id, :user_id, :vehicle_type_id, :created_by, :rating_id, :kind,
		:hourly_rate_cents, :vehicle_no, :mobile, :start_at, :end_at, :status, :payment_status,
		:is_parked, :created_at, :updated_at
	)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, q, res); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// Get loads a reservation by id, including soft-deleted rows.
func (r *ReservationRepo) Get(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := sqlx.GetContext(ctx, r.db, &res, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

// List returns one page of non-deleted reservations matching f, newest first,
// together with the total match count.  f must be normalized.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error) {
	where := []string{"is_deleted = 0"}
	args := []any{}

	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.ParkingAreaID != nil {
		where = append(where, "parking_area_id = ?")
		args = append(args, *f.ParkingAreaID)
	}
	if f.SlotID != nil {
		where = append(where, "slot_id = ?")
		args = append(args, *f.SlotID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.PaymentStatus != nil {
		where = append(where, "payment_status = ?")
		args = append(args, string(*f.PaymentStatus))
	}
	if f.VehicleNo != "" {
		where = append(where, "vehicle_no = ?")
		args = append(args, f.VehicleNo)
	}
	if f.Mobile != "" {
		where = append(where, "mobile = ?")
		args = append(args, f.Mobile)
	}
	if f.From != nil {
		where = append(where, "start_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "start_at < ?")
		args = append(args, f.To.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM reservations WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + cond + `
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)
	out := make([]model.Reservation, 0, f.PageSize)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, argsData...); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return out, total, nil
}

// execOne runs a conditional update and maps zero affected rows to ErrConflict.
func (r *ReservationRepo) execOne(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateStatus moves the reservation from one status to another.  It
// returns ErrConflict when the stored status is no longer from.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) error {
	return r.execOne(ctx, "update reservation status",
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ? AND is_deleted = 0`,
		string(to), id, string(from))
}

// Complete finalizes the reservation in one statement.
func (r *ReservationRepo) Complete(ctx context.Context, id string, from model.ReservationStatus, endAt time.Time, totalCents int64) error {
	return r.execOne(ctx, "complete reservation",
		`UPDATE reservations
		 SET status = 'COMPLETED', payment_status = 'PAID', end_at = ?, total_amount_cents = ?, is_parked = 0
		 WHERE id = ? AND status = ? AND is_deleted = 0`,
		endAt.UTC(), totalCents, id, string(from))
}

// MoveSlot rebinds the reservation to toSlot if it is still on fromSlot.
func (r *ReservationRepo) MoveSlot(ctx context.Context, id string, fromSlot, toSlot uint64) error {
	return r.execOne(ctx, "move reservation slot",
		`UPDATE reservations SET slot_id = ? WHERE id = ? AND slot_id = ?`,
		toSlot, id, fromSlot)
}

// SetPaymentStatus writes the payment status unconditionally.
func (r *ReservationRepo) SetPaymentStatus(ctx context.Context, id string, s model.PaymentStatus) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET payment_status = ? WHERE id = ?`, string(s), id); err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	return nil
}

// UpdateDetails applies the non-nil fields of p.
func (r *ReservationRepo) UpdateDetails(ctx context.Context, id string, p model.ReservationPatch) error {
	set := []string{}
	args := []any{}
	if p.VehicleNo != nil {
		set = append(set, "vehicle_no = ?")
		args = append(args, *p.VehicleNo)
	}
	if p.Mobile != nil {
		set = append(set, "mobile = ?")
		args = append(args, *p.Mobile)
	}
	if p.RatingID != nil {
		set = append(set, "rating_id = ?")
		args = append(args, *p.RatingID)
	}
	if p.IsParked != nil {
		set = append(set, "is_parked = ?")
		args = append(args, *p.IsParked)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET `+strings.Join(set, ", ")+` WHERE id = ? AND is_deleted = 0`, args...); err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return nil
}

// SoftDelete flags the reservation as deleted.
func (r *ReservationRepo) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE reservations SET is_deleted = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("soft delete reservation: %w", err)
	}
	return nil
}

// FindActiveByVehicle returns the most recent active reservation for the
// plate: PENDING and created within PendingHoldWindow, or CONFIRMED with a
// start time upcoming or at most ConfirmedGraceAfter in the past.
func (r *ReservationRepo) FindActiveByVehicle(ctx context.Context, vehicleNo string, now time.Time) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE vehicle_no = ? AND is_deleted = 0
		  AND ((status = 'PENDING' AND created_at >= ?)
		    OR (status = 'CONFIRMED' AND start_at >= ?))
		ORDER BY created_at DESC
		LIMIT 1`
	var res model.Reservation
	err := sqlx.GetContext(ctx, r.db, &res, q,
		vehicleNo, now.Add(-PendingHoldWindow).UTC(), now.Add(-ConfirmedGraceAfter).UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active reservation: %w", err)
	}
	return &res, nil
}
