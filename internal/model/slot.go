package model

import "time"

// Slot represents a physical parking space in the `parking_slots` table.
// ClaimVersion is bumped on every successful claim so that two transactions
// racing for the same slot cannot both commit.  OccupiedBy holds the id of
// the reservation whose vehicle is physically parked there.
type Slot struct {
	ID            uint64    `db:"id" json:"id"`
	ParkingAreaID uint64    `db:"parking_area_id" json:"parking_area_id"`
	VehicleTypeID uint64    `db:"vehicle_type_id" json:"vehicle_type_id"`
	Code          string    `db:"code" json:"code"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	ClaimVersion  uint32    `db:"claim_version" json:"-"`
	OccupiedBy    *string   `db:"occupied_by" json:"occupied_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"-"`
}

// SlotClaim binds a reservation to a slot for a window.  A claim with a
// non-nil ReleasedAt no longer blocks the slot.
type SlotClaim struct {
	ID            uint64     `db:"id"`
	SlotID        uint64     `db:"slot_id"`
	ReservationID string     `db:"reservation_id"`
	StartAt       time.Time  `db:"start_at"`
	EndAt         *time.Time `db:"end_at"`
	ReleasedAt    *time.Time `db:"released_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Window returns the claimed time range.
func (c SlotClaim) Window() Window {
	return Window{Start: c.StartAt, End: c.EndAt}
}

// SlotAvailability summarises free capacity of one vehicle class in an area
// for a window.
type SlotAvailability struct {
	ParkingAreaID uint64   `json:"parking_area_id"`
	VehicleTypeID uint64   `json:"vehicle_type_id"`
	Total         int      `json:"total"`
	Free          int      `json:"free"`
	FreeSlotIDs   []uint64 `json:"free_slot_ids"`
}
