package service

import (
	"errors"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// Not found.
var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrParkingAreaNotFound = errors.New("parking area not found")
	ErrVehicleTypeNotFound = errors.New("vehicle type not found")
	ErrUserNotFound        = errors.New("user not found")
)

// Capacity.  The two are shown to users differently: the first means the
// area cannot take this vehicle class at all, the second that it is full
// for the requested window.
var (
	ErrNoSlotsConfigured = errors.New("no slots configured for this vehicle type in the parking area")
	ErrNoSlotsAvailable  = errors.New("no slots available for the requested time")
)

// Conflict.
var (
	ErrSlotConflict            = errors.New("slot was claimed by another reservation")
	ErrActiveReservationExists = errors.New("vehicle already has an active reservation")
	ErrConcurrentUpdate        = errors.New("reservation was modified concurrently")
	ErrDuplicateDelivery       = errors.New("payment notification already processed")
)

// Invariant violations.
var (
	ErrInvalidTransition    = model.ErrInvalidTransition
	ErrAmountMismatch       = errors.New("payment amount does not match calculated amount")
	ErrReservationDeleted   = errors.New("reservation is deleted")
	ErrPaymentNotRefundable = errors.New("only paid payments can be refunded")
)

// ErrValidation wraps every malformed-input error.
var ErrValidation = errors.New("validation error")
