package model

import "time"

// ParkingArea is a row in the `parking_areas` table.
type ParkingArea struct {
	ID        uint64    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VehicleType is a vehicle class (car, bike, van...).  Slots are classed by
// it and rates are set per area and class.
type VehicleType struct {
	ID   uint64 `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// AreaRate is the hourly rate for one vehicle class in one area, stored in
// `parking_area_rates`.
type AreaRate struct {
	ParkingAreaID   uint64 `db:"parking_area_id" json:"parking_area_id"`
	VehicleTypeID   uint64 `db:"vehicle_type_id" json:"vehicle_type_id"`
	HourlyRateCents int64  `db:"hourly_rate_cents" json:"hourly_rate_cents"`
}
