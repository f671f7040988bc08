package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ReservationKind distinguishes bookings made ahead of arrival from bookings
// entered by staff when the vehicle is already at the gate.
type ReservationKind string

const (
	ReservationKindPreBooking ReservationKind = "PRE_BOOKING"
	ReservationKindOnSpot     ReservationKind = "ON_SPOT"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

// PaymentStatus is shared by reservations and payment records.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

// ReservationEvent drives a status transition.
type ReservationEvent string

const (
	EventConfirm  ReservationEvent = "confirm"
	EventCancel   ReservationEvent = "cancel"
	EventComplete ReservationEvent = "complete"
)

var (
	ErrInvalidTransition      = errors.New("invalid reservation transition")
	ErrUnknownStatus          = errors.New("unknown reservation status")
	ErrUnknownPaymentStatus   = errors.New("unknown payment status")
	ErrUnknownReservationKind = errors.New("unknown reservation kind")
)

// transitions lists every legal (from, event) pair.  Cancelled and completed
// reservations have no outgoing edges.
var transitions = map[ReservationStatus]map[ReservationEvent]ReservationStatus{
	ReservationStatusPending: {
		EventConfirm:  ReservationStatusConfirmed,
		EventCancel:   ReservationStatusCancelled,
		EventComplete: ReservationStatusCompleted,
	},
	ReservationStatusConfirmed: {
		EventConfirm:  ReservationStatusConfirmed,
		EventCancel:   ReservationStatusCancelled,
		EventComplete: ReservationStatusCompleted,
	},
}

// Transition returns the status reached by applying ev to s.
func (s ReservationStatus) Transition(ev ReservationEvent) (ReservationStatus, error) {
	next, ok := transitions[s][ev]
	if !ok {
		return s, fmt.Errorf("%w: cannot %s a %s reservation", ErrInvalidTransition, ev, strings.ToLower(string(s)))
	}
	return next, nil
}

// IsActive reports whether the reservation still holds a slot.
func (s ReservationStatus) IsActive() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// ParseReservationStatus accepts any casing.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	s := ReservationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// ParsePaymentStatus accepts any casing.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, raw)
}

// ParseReservationKind accepts any casing and "-" as a separator.
func ParseReservationKind(raw string) (ReservationKind, error) {
	k := ReservationKind(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "-", "_"))
	switch k {
	case ReservationKindPreBooking, ReservationKindOnSpot:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReservationKind, raw)
}

// NormalizeVehicleNo upper-cases a plate and drops every whitespace rune so
// "wp  cab-1234" and "WPCAB-1234" compare equal.
func NormalizeVehicleNo(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Window is the time range a reservation occupies a slot.  A nil End means
// the window stays open until the reservation is completed or cancelled.
type Window struct {
	Start time.Time
	End   *time.Time
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(o Window) bool {
	if w.End != nil && !w.End.After(o.Start) {
		return false
	}
	if o.End != nil && !o.End.After(w.Start) {
		return false
	}
	return true
}

// Reservation records a driver's booking of a parking slot.  It corresponds
// to a row in the `reservations` table; the payment list is assembled from
// the `payments` table ordered by creation.
//
// Fields:
//
//	ID               – opaque uuid.
//	SlotID           – slot currently bound to the reservation.
//	ParkingAreaID    – area containing the slot.
//	UserID           – driver the reservation belongs to.
//	VehicleTypeID    – vehicle class used for slot matching.
//	CreatedBy        – user who entered the booking (staff for on-spot).
//	HourlyRateCents  – rate captured at booking time, never updated.
//	TotalAmountCents – set only when the reservation is completed.
//	IsParked         – the vehicle is physically in the slot.
type Reservation struct {
	ID               string            `db:"id" json:"id"`
	SlotID           uint64            `db:"slot_id" json:"slot_id"`
	ParkingAreaID    uint64            `db:"parking_area_id" json:"parking_area_id"`
	UserID           uint64            `db:"user_id" json:"user_id"`
	VehicleTypeID    uint64            `db:"vehicle_type_id" json:"vehicle_type_id"`
	CreatedBy        uint64            `db:"created_by" json:"created_by"`
	RatingID         *uint64           `db:"rating_id" json:"rating_id,omitempty"`
	Kind             ReservationKind   `db:"kind" json:"kind"`
	HourlyRateCents  int64             `db:"hourly_rate_cents" json:"hourly_rate_cents"`
	VehicleNo        string            `db:"vehicle_no" json:"vehicle_no"`
	Mobile           string            `db:"mobile" json:"mobile"`
	StartAt          time.Time         `db:"start_at" json:"start_at"`
	EndAt            *time.Time        `db:"end_at" json:"end_at,omitempty"`
	TotalAmountCents *int64            `db:"total_amount_cents" json:"total_amount_cents,omitempty"`
	Status           ReservationStatus `db:"status" json:"status"`
	PaymentStatus    PaymentStatus     `db:"payment_status" json:"payment_status"`
	PaymentIDs       []string          `db:"-" json:"payment_ids"`
	IsParked         bool              `db:"is_parked" json:"is_parked"`
	IsDeleted        bool              `db:"is_deleted" json:"-"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// Window returns the slot window requested by the reservation.
func (r Reservation) Window() Window {
	return Window{Start: r.StartAt, End: r.EndAt}
}
