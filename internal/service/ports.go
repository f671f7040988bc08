package service

import (
	"context"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// CatalogReader resolves parking areas, vehicle classes and rates.
type CatalogReader interface {
	GetParkingArea(ctx context.Context, id uint64) (*model.ParkingArea, error)
	GetVehicleType(ctx context.Context, id uint64) (*model.VehicleType, error)
	GetAreaRate(ctx context.Context, areaID, vehicleTypeID uint64) (*model.AreaRate, error)
}

// UserReader resolves driver contact details.
type UserReader interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// Notifier delivers a templated message to a user.  Calls are fire and
// forget; errors are logged by the caller and never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, template string, data map[string]any) error
}

// DeliveryGuard serialises processing of one gateway delivery.
type DeliveryGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Notification templates.
const (
	TemplateBookingCreated       = "BOOKING_CREATED"
	TemplateReservationCancelled = "RESERVATION_CANCELLED"
	TemplateReservationCompleted = "RESERVATION_COMPLETED"
	TemplatePaymentReceived      = "PAYMENT_RECEIVED"
	TemplatePaymentFailed        = "PAYMENT_FAILED"
	TemplateSlotChanged          = "SLOT_CHANGED"
)
