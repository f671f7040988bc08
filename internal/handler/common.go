// Package handler contains the HTTP handlers of the parking API.  Handlers
// only parse input, check who is calling and shape responses; every rule
// lives in the service layer behind the interfaces declared here.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// ReservationService is the reservation use-case surface the handlers need.
type ReservationService interface {
	Create(ctx context.Context, req service.CreateReservationRequest) (*model.Reservation, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error)
	FindActiveByVehicle(ctx context.Context, vehicleNo string) (*model.Reservation, error)
	Update(ctx context.Context, id string, p model.ReservationPatch) (*model.Reservation, error)
	Cancel(ctx context.Context, id string) (*model.Reservation, error)
	Complete(ctx context.Context, id string) (*model.Reservation, error)
	ChangeSlot(ctx context.Context, id string) (*model.Reservation, error)
	UpdatePaymentStatus(ctx context.Context, id, status string) (*model.Reservation, error)
	Quote(ctx context.Context, id string) (billing.Quote, error)
	Delete(ctx context.Context, id string) error
	Availability(ctx context.Context, areaID, vehicleTypeID uint64, w model.Window) (model.SlotAvailability, error)
}

// PaymentService is the payment use-case surface the handlers need.
type PaymentService interface {
	IssueCheckoutToken(ctx context.Context, orderID string, amountCents int64, currency string) (service.CheckoutToken, error)
	Reconcile(ctx context.Context, n service.GatewayNotification) (service.ReconcileOutcome, error)
	RecordPayment(ctx context.Context, reservationID string, req service.StaffPaymentRequest) (*model.PaymentRecord, error)
	Refund(ctx context.Context, paymentID string) (*model.PaymentRecord, error)
	ListPayments(ctx context.Context, reservationID string) ([]model.PaymentRecord, error)
}

// caller is the authenticated principal of a request.
type caller struct {
	ID   uint64
	Role string
}

func (u caller) staff() bool { return model.IsStaff(u.Role) }

// currentUser reads the identity stored by the JWT middleware.
func currentUser(c echo.Context) (caller, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		return caller{}, false
	}
	return caller{ID: id, Role: middleware.Role(c)}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID returns a non-empty :id path parameter.
func pathID(c echo.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	return id, id != ""
}

func parseUintParam(raw string) (*uint64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return nil, strconv.ErrSyntax
	}
	return &n, nil
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
