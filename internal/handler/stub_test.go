package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// stubReservations returns canned values and records the last inputs.
type stubReservations struct {
	reservations map[string]*model.Reservation
	err          error

	created    service.CreateReservationRequest
	filter     model.ReservationFilter
	cancelled  string
	window     model.Window
	areaID     uint64
	vehicleTyp uint64
}

func (s *stubReservations) Create(_ context.Context, req service.CreateReservationRequest) (*model.Reservation, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.Reservation{ID: "res-new", UserID: req.UserID, Kind: req.Kind, Status: model.ReservationStatusPending}, nil
}

func (s *stubReservations) Get(_ context.Context, id string) (*model.Reservation, error) {
	if r, ok := s.reservations[id]; ok {
		return r, nil
	}
	return nil, service.ErrReservationNotFound
}

func (s *stubReservations) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error) {
	s.filter = f
	return []model.Reservation{}, 0, s.err
}

func (s *stubReservations) FindActiveByVehicle(_ context.Context, plate string) (*model.Reservation, error) {
	for _, r := range s.reservations {
		if r.VehicleNo == model.NormalizeVehicleNo(plate) {
			return r, nil
		}
	}
	return nil, service.ErrReservationNotFound
}

func (s *stubReservations) Update(_ context.Context, id string, _ model.ReservationPatch) (*model.Reservation, error) {
	return s.reservations[id], s.err
}

func (s *stubReservations) Cancel(_ context.Context, id string) (*model.Reservation, error) {
	s.cancelled = id
	if s.err != nil {
		return nil, s.err
	}
	r := *s.reservations[id]
	r.Status = model.ReservationStatusCancelled
	return &r, nil
}

func (s *stubReservations) Complete(_ context.Context, id string) (*model.Reservation, error) {
	return s.reservations[id], s.err
}

func (s *stubReservations) ChangeSlot(_ context.Context, id string) (*model.Reservation, error) {
	return s.reservations[id], s.err
}

func (s *stubReservations) UpdatePaymentStatus(_ context.Context, id, _ string) (*model.Reservation, error) {
	return s.reservations[id], s.err
}

func (s *stubReservations) Quote(context.Context, string) (billing.Quote, error) {
	return billing.Quote{Hours: 2, HourlyRateCents: 100, AmountCents: 200, DueCents: 200}, s.err
}

func (s *stubReservations) Delete(context.Context, string) error { return s.err }

func (s *stubReservations) Availability(_ context.Context, areaID, vehicleTypeID uint64, w model.Window) (model.SlotAvailability, error) {
	s.areaID, s.vehicleTyp, s.window = areaID, vehicleTypeID, w
	return model.SlotAvailability{ParkingAreaID: areaID, VehicleTypeID: vehicleTypeID, Total: 3, Free: 1, FreeSlotIDs: []uint64{103}}, s.err
}

type stubPayments struct {
	err          error
	notification service.GatewayNotification
	staffReq     service.StaffPaymentRequest
	tokenCents   int64
}

func (s *stubPayments) IssueCheckoutToken(_ context.Context, orderID string, cents int64, currency string) (service.CheckoutToken, error) {
	s.tokenCents = cents
	return service.CheckoutToken{OrderID: orderID, Amount: "10.00", Currency: currency, Hash: "HASH"}, s.err
}

func (s *stubPayments) Reconcile(_ context.Context, n service.GatewayNotification) (service.ReconcileOutcome, error) {
	s.notification = n
	return service.ReconcileOutcome{ReservationID: n.OrderID, Verified: true, PaymentStatus: model.PaymentStatusPaid}, s.err
}

func (s *stubPayments) RecordPayment(_ context.Context, id string, req service.StaffPaymentRequest) (*model.PaymentRecord, error) {
	s.staffReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.PaymentRecord{ID: "pay-1", ReservationID: id, AmountCents: req.AmountCents, Method: req.Method, Status: model.PaymentStatusPaid}, nil
}

func (s *stubPayments) Refund(_ context.Context, id string) (*model.PaymentRecord, error) {
	return &model.PaymentRecord{ID: id, Status: model.PaymentStatusRefunded}, s.err
}

func (s *stubPayments) ListPayments(context.Context, string) ([]model.PaymentRecord, error) {
	return []model.PaymentRecord{}, s.err
}

// as installs an identity the way JWTAuth would.
func as(userID uint64, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextUserID, userID)
			c.Set(middleware.ContextRole, role)
			return next(c)
		}
	}
}

func newTestEcho(userID uint64, role string, res *stubReservations, pay *stubPayments) *echo.Echo {
	e := echo.New()
	rh := NewReservationHandler(res, zap.NewNop())
	ph := NewPaymentHandler(pay, res, zap.NewNop())

	e.POST("/v1/payments/notify", ph.Notify)
	e.GET("/v1/parking-areas/:id/availability", rh.Availability)

	g := e.Group("/v1", as(userID, role))
	g.POST("/reservations", rh.Create)
	g.POST("/reservations/on-spot", rh.CreateOnSpot)
	g.GET("/reservations", rh.List)
	g.GET("/reservations/active", rh.Active)
	g.GET("/reservations/:id", rh.Get)
	g.PATCH("/reservations/:id", rh.Update)
	g.POST("/reservations/:id/cancel", rh.Cancel)
	g.POST("/reservations/:id/complete", rh.Complete)
	g.GET("/reservations/:id/amount", rh.Amount)
	g.DELETE("/reservations/:id", rh.Delete)
	g.POST("/reservations/:id/payments", ph.Record)
	g.GET("/reservations/:id/payments", ph.List)
	g.POST("/payments/token", ph.Token)
	g.POST("/payments/:id/refund", ph.Refund)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	ct := ""
	if body != "" {
		ct = echo.MIMEApplicationJSON
	}
	return do(t, e, method, target, ct, body)
}
