package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// Availability handles GET /v1/parking-areas/:id/availability with
// vehicle_type_id, start_at and end_at query parameters.  start_at defaults
// to now and a missing end_at asks for an open-ended window.
func (h *ReservationHandler) Availability(c echo.Context) error {
	areaID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || areaID == 0 {
		return badRequest(c, "invalid parking area id")
	}
	vt, err := parseUintParam(c.QueryParam("vehicle_type_id"))
	if err != nil || vt == nil {
		return badRequest(c, "vehicle_type_id is required")
	}
	start, err := parseTimeParam(c.QueryParam("start_at"))
	if err != nil {
		return badRequest(c, "invalid start_at")
	}
	end, err := parseTimeParam(c.QueryParam("end_at"))
	if err != nil {
		return badRequest(c, "invalid end_at")
	}
	w := model.Window{End: end}
	if start != nil {
		w.Start = *start
	} else {
		w.Start = time.Now().UTC()
	}

	av, err := h.svc.Availability(c.Request().Context(), areaID, *vt, w)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": av})
}
