package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// SlotStore is the slot inventory with the claim/release protocol.
type SlotStore interface {
	CountSlots(ctx context.Context, areaID, vehicleTypeID uint64) (int, error)
	FreeSlots(ctx context.Context, areaID, vehicleTypeID uint64, w model.Window) ([]uint64, error)
	Claim(ctx context.Context, slotID uint64, reservationID string, w model.Window, occupied bool) error
	Release(ctx context.Context, slotID uint64, reservationID string) error
	SetOccupant(ctx context.Context, slotID uint64, reservationID string, parked bool) error
}

// ReservationStore persists reservations.
type ReservationStore interface {
	Insert(ctx context.Context, r *model.Reservation) error
	Get(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error)
	UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) error
	Complete(ctx context.Context, id string, from model.ReservationStatus, endAt time.Time, totalCents int64) error
	MoveSlot(ctx context.Context, id string, fromSlot, toSlot uint64) error
	SetPaymentStatus(ctx context.Context, id string, s model.PaymentStatus) error
	UpdateDetails(ctx context.Context, id string, p model.ReservationPatch) error
	SoftDelete(ctx context.Context, id string) error
	FindActiveByVehicle(ctx context.Context, vehicleNo string, now time.Time) (*model.Reservation, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Insert(ctx context.Context, p *model.PaymentRecord) error
	Get(ctx context.Context, id string) (*model.PaymentRecord, error)
	ListByReservation(ctx context.Context, reservationID string) ([]model.PaymentRecord, error)
	FindByDigest(ctx context.Context, reservationID, digest string) (*model.PaymentRecord, error)
	UpdateStatus(ctx context.Context, id string, from, to model.PaymentStatus) error
}

// Store groups the repositories whose writes must commit together.
type Store interface {
	Slots() SlotStore
	Reservations() ReservationStore
	Payments() PaymentStore
	// WithTx runs fn inside one transaction.  fn must use the Store it is
	// given; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// SQLStore implements Store on MySQL.
type SQLStore struct {
	db  *sqlx.DB // nil inside a transaction
	ext sqlx.ExtContext
}

// NewSQLStore returns a Store bound to the pool.
func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db, ext: db} }

func (s *SQLStore) Slots() SlotStore               { return NewSlotRepo(s.ext) }
func (s *SQLStore) Reservations() ReservationStore { return NewReservationRepo(s.ext) }
func (s *SQLStore) Payments() PaymentStore         { return NewPaymentRepo(s.ext) }

// WithTx begins a transaction on the pool.  Nested calls reuse the open
// transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) (err error) {
	if s.db == nil {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(ctx, &SQLStore{ext: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
