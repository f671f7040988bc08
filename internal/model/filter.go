package model

import (
	"errors"
	"time"
)

// MaxPageSize caps list queries.
const MaxPageSize = 200

var ErrInvalidFilter = errors.New("invalid reservation filter")

// ReservationFilter is the closed set of list criteria.  Nil or empty fields
// are ignored; everything set is combined with AND.
type ReservationFilter struct {
	UserID        *uint64
	ParkingAreaID *uint64
	SlotID        *uint64
	Status        *ReservationStatus
	PaymentStatus *PaymentStatus
	VehicleNo     string
	Mobile        string
	From          *time.Time // start_at >= From
	To            *time.Time // start_at < To
	Page          int
	PageSize      int
}

// Normalize fills paging defaults, canonicalises the plate and rejects
// inconsistent criteria.
func (f *ReservationFilter) Normalize() error {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	f.VehicleNo = NormalizeVehicleNo(f.VehicleNo)
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return errors.Join(ErrInvalidFilter, errors.New("to must be after from"))
	}
	return nil
}

// ReservationPatch carries the editable reservation fields.  Status, slot
// and amounts have dedicated operations and cannot be patched.
type ReservationPatch struct {
	VehicleNo *string `json:"vehicle_no"`
	Mobile    *string `json:"mobile"`
	RatingID  *uint64 `json:"rating_id"`
	IsParked  *bool   `json:"is_parked"`
}

// Empty reports whether the patch changes nothing.
func (p ReservationPatch) Empty() bool {
	return p.VehicleNo == nil && p.Mobile == nil && p.RatingID == nil && p.IsParked == nil
}
