package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// statusFor maps service errors to HTTP statuses.  Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrParkingAreaNotFound),
		errors.Is(err, service.ErrVehicleTypeNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrNoSlotsConfigured),
		errors.Is(err, service.ErrNoSlotsAvailable),
		errors.Is(err, service.ErrSlotConflict),
		errors.Is(err, service.ErrActiveReservationExists),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, service.ErrDuplicateDelivery):
		return http.StatusConflict

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrReservationDeleted),
		errors.Is(err, service.ErrPaymentNotRefundable):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrValidation),
		errors.Is(err, model.ErrInvalidFilter),
		errors.Is(err, model.ErrUnknownStatus),
		errors.Is(err, model.ErrUnknownPaymentStatus),
		errors.Is(err, model.ErrUnknownPaymentMethod),
		errors.Is(err, model.ErrUnknownReservationKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": message}.  Internal errors are
// logged and hidden from the client.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err),
		)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
