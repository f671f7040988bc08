package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// SlotRepo reads the slot inventory and binds reservations to slots.
//
// A claim is a row in slot_claims.  Because MySQL cannot express "insert only
// if no overlapping row exists" in one statement, every successful claim also
// bumps parking_slots.claim_version with a compare-and-set.  Two transactions
// that both saw the slot free read the same version, so only the first
// UPDATE matches and the loser gets ErrConflict and rolls back.
type SlotRepo struct {
	db sqlx.ExtContext
}

// NewSlotRepo returns a SlotRepo on the pool or an open transaction.
func NewSlotRepo(db sqlx.ExtContext) *SlotRepo { return &SlotRepo{db: db} }

// overlapCond matches unreleased claims intersecting [start, end).  A NULL
// end on either side is open ended.  Expects args: start, end, end.
const overlapCond = `c.released_at IS NULL
	  AND (c.end_at IS NULL OR c.end_at > ?)
	  AND (? IS NULL OR c.start_at < ?)`

func windowArgs(w model.Window) []any {
	var end any
	if w.End != nil {
		end = w.End.UTC()
	}
	return []any{w.Start.UTC(), end, end}
}

// CountSlots returns how many active slots of the vehicle class the area has.
func (r *SlotRepo) CountSlots(ctx context.Context, areaID, vehicleTypeID uint64) (int, error) {
	var n int
	const q = `SELECT COUNT(*) FROM parking_slots
		WHERE parking_area_id = ? AND vehicle_type_id = ? AND is_active = 1`
	if err := sqlx.GetContext(ctx, r.db, &n, q, areaID, vehicleTypeID); err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return n, nil
}

// FreeSlots lists slots of the class with no claim overlapping w, ordered by
// slot code then id.
func (r *SlotRepo) FreeSlots(ctx context.Context, areaID, vehicleTypeID uint64, w model.Window) ([]uint64, error) {
	q := `SELECT s.id FROM parking_slots s
		WHERE s.parking_area_id = ? AND s.vehicle_type_id = ? AND s.is_active = 1
		  AND NOT EXISTS (
			SELECT 1 FROM slot_claims c
			WHERE c.slot_id = s.id AND ` + overlapCond + `)
		ORDER BY s.code ASC, s.id ASC`
	args := append([]any{areaID, vehicleTypeID}, windowArgs(w)...)
	ids := []uint64{}
	if err := sqlx.SelectContext(ctx, r.db, &ids, q, args...); err != nil {
		return nil, fmt.Errorf("free slots: %w", err)
	}
	return ids, nil
}

// Claim binds reservationID to slotID for w.  It returns ErrConflict when an
// overlapping claim exists or another transaction claimed the slot since the
// version was read, and ErrNotFound for unknown or inactive slots.  When
// occupied is set the slot is also marked as physically taken by the
// reservation.
func (r *SlotRepo) Claim(ctx context.Context, slotID uint64, reservationID string, w model.Window, occupied bool) error {
	var version uint32
	err := sqlx.GetContext(ctx, r.db, &version,
		`SELECT claim_version FROM parking_slots WHERE id = ? AND is_active = 1`, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read claim version: %w", err)
	}

	var overlapping int
	q := `SELECT COUNT(*) FROM slot_claims c WHERE c.slot_id = ? AND ` + overlapCond
	if err := sqlx.GetContext(ctx, r.db, &overlapping, q, append([]any{slotID}, windowArgs(w)...)...); err != nil {
		return fmt.Errorf("check overlapping claims: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE parking_slots SET claim_version = claim_version + 1 WHERE id = ? AND claim_version = ?`,
		slotID, version)
	if err != nil {
		return fmt.Errorf("bump claim version: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("bump claim version: %w", err)
	} else if n == 0 {
		return ErrConflict
	}

	var end any
	if w.End != nil {
		end = w.End.UTC()
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO slot_claims (slot_id, reservation_id, start_at, end_at) VALUES (?, ?, ?, ?)`,
		slotID, reservationID, w.Start.UTC(), end); err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	if occupied {
		return r.SetOccupant(ctx, slotID, reservationID, true)
	}
	return nil
}

// Release ends the reservation's claim on the slot and clears the occupant
// if it is this reservation.  Releasing twice is a no-op.
func (r *SlotRepo) Release(ctx context.Context, slotID uint64, reservationID string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE slot_claims SET released_at = UTC_TIMESTAMP(6)
		 WHERE slot_id = ? AND reservation_id = ? AND released_at IS NULL`,
		slotID, reservationID); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE parking_slots SET occupied_by = NULL WHERE id = ? AND occupied_by = ?`,
		slotID, reservationID); err != nil {
		return fmt.Errorf("clear occupant: %w", err)
	}
	return nil
}

// SetOccupant marks or clears the physical occupant of a slot.  Clearing
// only applies when the slot is held by reservationID.
func (r *SlotRepo) SetOccupant(ctx context.Context, slotID uint64, reservationID string, parked bool) error {
	var err error
	if parked {
		_, err = r.db.ExecContext(ctx,
			`UPDATE parking_slots SET occupied_by = ? WHERE id = ?`, reservationID, slotID)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE parking_slots SET occupied_by = NULL WHERE id = ? AND occupied_by = ?`, slotID, reservationID)
	}
	if err != nil {
		return fmt.Errorf("set occupant: %w", err)
	}
	return nil
}
