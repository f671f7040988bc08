package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// ReservationHandler serves /v1/reservations.  Drivers only ever see their
// own reservations; a reservation owned by someone else is reported as not
// found.  Staff and admins see everything.
type ReservationHandler struct {
	svc ReservationService
	log *zap.Logger
}

// NewReservationHandler panics on a nil service, like the other handler
// constructors.
func NewReservationHandler(svc ReservationService, log *zap.Logger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc, log: log}
}

type createReservationBody struct {
	ParkingAreaID uint64     `json:"parking_area_id"`
	VehicleTypeID uint64     `json:"vehicle_type_id"`
	UserID        uint64     `json:"user_id"`
	VehicleNo     string     `json:"vehicle_no"`
	Mobile        string     `json:"mobile"`
	StartAt       *time.Time `json:"start_at"`
	EndAt         *time.Time `json:"end_at"`
	IsParked      bool       `json:"is_parked"`
}

// Create handles POST /v1/reservations (pre-booking).  Drivers always book
// for themselves; staff may book for any user_id.
func (h *ReservationHandler) Create(c echo.Context) error {
	return h.create(c, model.ReservationKindPreBooking)
}

// CreateOnSpot handles POST /v1/reservations/on-spot, used by staff for
// vehicles already at the gate.
func (h *ReservationHandler) CreateOnSpot(c echo.Context) error {
	return h.create(c, model.ReservationKindOnSpot)
}

func (h *ReservationHandler) create(c echo.Context, kind model.ReservationKind) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var body createReservationBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	userID := body.UserID
	if !u.staff() || userID == 0 {
		userID = u.ID
	}
	res, err := h.svc.Create(c.Request().Context(), service.CreateReservationRequest{
		Kind:          kind,
		ParkingAreaID: body.ParkingAreaID,
		VehicleTypeID: body.VehicleTypeID,
		UserID:        userID,
		CreatedBy:     u.ID,
		VehicleNo:     body.VehicleNo,
		Mobile:        body.Mobile,
		StartAt:       body.StartAt,
		EndAt:         body.EndAt,
		IsParked:      body.IsParked,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// visible loads the reservation and hides it from drivers who do not own it.
func (h *ReservationHandler) visible(c echo.Context, u caller, id string) (*model.Reservation, error) {
	res, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !u.staff() && res.UserID != u.ID {
		return nil, service.ErrReservationNotFound
	}
	return res, nil
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.visible(c, u, id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// List handles GET /v1/reservations.  Query parameters: user_id,
// parking_area_id, slot_id, status, payment_status, vehicle_no, mobile,
// from and to (RFC 3339, on start_at), page and page_size.
func (h *ReservationHandler) List(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !u.staff() {
		f.UserID = &u.ID
	}
	if err := f.Normalize(); err != nil {
		return respondError(c, h.log, err)
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

type filterParamError struct{ name string }

func (e filterParamError) Error() string { return "invalid " + e.name }

func parseFilter(c echo.Context) (model.ReservationFilter, error) {
	var f model.ReservationFilter
	var err error
	if f.UserID, err = parseUintParam(c.QueryParam("user_id")); err != nil {
		return f, filterParamError{"user_id"}
	}
	if f.ParkingAreaID, err = parseUintParam(c.QueryParam("parking_area_id")); err != nil {
		return f, filterParamError{"parking_area_id"}
	}
	if f.SlotID, err = parseUintParam(c.QueryParam("slot_id")); err != nil {
		return f, filterParamError{"slot_id"}
	}
	if raw := c.QueryParam("status"); raw != "" {
		s, err := model.ParseReservationStatus(raw)
		if err != nil {
			return f, filterParamError{"status"}
		}
		f.Status = &s
	}
	if raw := c.QueryParam("payment_status"); raw != "" {
		s, err := model.ParsePaymentStatus(raw)
		if err != nil {
			return f, filterParamError{"payment_status"}
		}
		f.PaymentStatus = &s
	}
	f.VehicleNo = c.QueryParam("vehicle_no")
	f.Mobile = c.QueryParam("mobile")
	if f.From, err = parseTimeParam(c.QueryParam("from")); err != nil {
		return f, filterParamError{"from"}
	}
	if f.To, err = parseTimeParam(c.QueryParam("to")); err != nil {
		return f, filterParamError{"to"}
	}
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	f.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	return f, nil
}

// Active handles GET /v1/reservations/active?vehicle_no=.
func (h *ReservationHandler) Active(c echo.Context) error {
	plate := c.QueryParam("vehicle_no")
	if plate == "" {
		return badRequest(c, "vehicle_no is required")
	}
	res, err := h.svc.FindActiveByVehicle(c.Request().Context(), plate)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Update handles PATCH /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var patch model.ReservationPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	if _, err := h.visible(c, u, id); err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.Update(c.Request().Context(), id, patch)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if _, err := h.visible(c, u, id); err != nil {
		return respondError(c, h.log, err)
	}
	res, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Complete handles POST /v1/reservations/:id/complete.
func (h *ReservationHandler) Complete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// ChangeSlot handles POST /v1/reservations/:id/change-slot.
func (h *ReservationHandler) ChangeSlot(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.svc.ChangeSlot(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// UpdatePaymentStatus handles PATCH /v1/reservations/:id/payment-status.
func (h *ReservationHandler) UpdatePaymentStatus(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var body struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.Bind(&body); err != nil || body.PaymentStatus == "" {
		return badRequest(c, "payment_status is required")
	}
	res, err := h.svc.UpdatePaymentStatus(c.Request().Context(), id, body.PaymentStatus)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Amount handles GET /v1/reservations/:id/amount: the amount due if the
// reservation were completed now.
func (h *ReservationHandler) Amount(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if _, err := h.visible(c, u, id); err != nil {
		return respondError(c, h.log, err)
	}
	q, err := h.svc.Quote(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": q})
}

// Delete handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
