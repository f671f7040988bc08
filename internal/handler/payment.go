package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

// PaymentHandler serves checkout tokens, the gateway webhook and staff
// payment entry.  Reservation ownership checks go through the reservation
// service.
type PaymentHandler struct {
	payments     PaymentService
	reservations ReservationService
	log          *zap.Logger
}

func NewPaymentHandler(payments PaymentService, reservations ReservationService, log *zap.Logger) *PaymentHandler {
	if payments == nil || reservations == nil {
		panic("nil service passed to NewPaymentHandler")
	}
	return &PaymentHandler{payments: payments, reservations: reservations, log: log}
}

func (h *PaymentHandler) owned(c echo.Context, u caller, reservationID string) error {
	res, err := h.reservations.Get(c.Request().Context(), reservationID)
	if err != nil {
		return err
	}
	if !u.staff() && res.UserID != u.ID {
		return service.ErrReservationNotFound
	}
	return nil
}

// Token handles POST /v1/payments/token.  Body: order_id (the reservation
// id), amount as a decimal string and an optional currency.
func (h *PaymentHandler) Token(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		OrderID  string `json:"order_id"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	cents, err := utils.ParseAmount(body.Amount)
	if err != nil {
		return badRequest(c, "invalid amount")
	}
	if body.OrderID == "" {
		return badRequest(c, "order_id is required")
	}
	if err := h.owned(c, u, body.OrderID); err != nil {
		return respondError(c, h.log, err)
	}
	tok, err := h.payments.IssueCheckoutToken(c.Request().Context(), body.OrderID, cents, body.Currency)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": tok})
}

// Notify handles POST /v1/payments/notify, the form-encoded server-to-server
// callback of the gateway.  It is not behind JWT; authenticity comes from
// the md5sig digest checked by the service.  Every processed delivery,
// including failed and repeated ones, is answered 200 so the gateway stops
// retrying.
func (h *PaymentHandler) Notify(c echo.Context) error {
	var n service.GatewayNotification
	if err := c.Bind(&n); err != nil {
		return badRequest(c, "invalid notification")
	}
	out, err := h.payments.Reconcile(c.Request().Context(), n)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

type staffPaymentBody struct {
	Amount    string   `json:"amount"`
	Method    string   `json:"method"`
	Reference string   `json:"reference"`
	BankName  string   `json:"bank_name"`
	Evidence  []string `json:"evidence"`
}

// Record handles POST /v1/reservations/:id/payments for money taken by
// staff.
func (h *PaymentHandler) Record(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body staffPaymentBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	cents, err := utils.ParseAmount(body.Amount)
	if err != nil {
		return badRequest(c, "invalid amount")
	}
	method, err := model.ParsePaymentMethod(body.Method)
	if err != nil {
		return respondError(c, h.log, err)
	}
	rec, err := h.payments.RecordPayment(c.Request().Context(), id, service.StaffPaymentRequest{
		AmountCents: cents,
		Method:      method,
		PaidBy:      u.ID,
		Reference:   body.Reference,
		BankName:    body.BankName,
		Evidence:    body.Evidence,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": rec})
}

// List handles GET /v1/reservations/:id/payments.
func (h *PaymentHandler) List(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if err := h.owned(c, u, id); err != nil {
		return respondError(c, h.log, err)
	}
	items, err := h.payments.ListPayments(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Refund handles POST /v1/payments/:id/refund.
func (h *PaymentHandler) Refund(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	rec, err := h.payments.Refund(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": rec})
}
