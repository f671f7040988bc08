package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// CatalogRepo reads parking areas, vehicle classes and their rates.  The
// catalog is maintained by another service; nothing here writes to it.
type CatalogRepo struct {
	db sqlx.QueryerContext
}

func NewCatalogRepo(db sqlx.QueryerContext) *CatalogRepo { return &CatalogRepo{db: db} }

func (r *CatalogRepo) GetParkingArea(ctx context.Context, id uint64) (*model.ParkingArea, error) {
	var a model.ParkingArea
	err := sqlx.GetContext(ctx, r.db, &a,
		`SELECT id, name, address, is_active, created_at FROM parking_areas WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parking area: %w", err)
	}
	return &a, nil
}

func (r *CatalogRepo) GetVehicleType(ctx context.Context, id uint64) (*model.VehicleType, error) {
	var v model.VehicleType
	err := sqlx.GetContext(ctx, r.db, &v, `SELECT id, name FROM vehicle_types WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle type: %w", err)
	}
	return &v, nil
}

// GetAreaRate returns the hourly rate of a vehicle class in an area.
func (r *CatalogRepo) GetAreaRate(ctx context.Context, areaID, vehicleTypeID uint64) (*model.AreaRate, error) {
	var rate model.AreaRate
	err := sqlx.GetContext(ctx, r.db, &rate,
		`SELECT parking_area_id, vehicle_type_id, hourly_rate_cents
		 FROM parking_area_rates WHERE parking_area_id = ? AND vehicle_type_id = ?`, areaID, vehicleTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get area rate: %w", err)
	}
	return &rate, nil
}
