package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chenwt/key-reservation/internal/service"
)

// RentHandler exposes the member-facing booking endpoints.  Members are not
// authenticated beyond the shared password carried in the form, so the
// handlers take everything from the submitted fields.
type RentHandler struct {
	Svc *service.Booking
}

// NewRentHandler constructs a RentHandler.  The service must be non-nil.
func NewRentHandler(svc *service.Booking) *RentHandler {
	if svc == nil {
		panic("nil service passed to NewRentHandler")
	}
	return &RentHandler{Svc: svc}
}

// SubmitRent handles POST /v1/rents.  The form carries name, phone, email,
// password, key_id, date (YYYY-MM-DD) and one or more slots fields.  On
// success it returns 201 with the recorded booking; failures map to 400
// (validation), 401 (password, after the configured delay) or 409
// (slot conflict, naming the overlapping periods).
func (h *RentHandler) SubmitRent(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid form body"})
	}
	req := service.RentRequest{
		Name:     strings.TrimSpace(c.FormValue("name")),
		Phone:    strings.TrimSpace(c.FormValue("phone")),
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
		KeyID:    strings.TrimSpace(c.FormValue("key_id")),
		Date:     strings.TrimSpace(c.FormValue("date")),
		Slots:    form["slots"],
	}

	lease, err := h.Svc.SubmitRent(c.Request().Context(), req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": fmt.Sprintf("預約成功！鑰匙 %s，日期 %s（%s）", lease.KeyID,
			lease.LeaseDate.Format(service.DateLayout), lease.Weekday()),
		"key_id":  lease.KeyID,
		"date":    lease.LeaseDate.Format(service.DateLayout),
		"weekday": lease.Weekday(),
		"slots":   lease.Slots,
		"status":  string(lease.Status),
	})
}

// SubmitReturn handles POST /v1/returns.  The form carries phone, key_id
// and date; the triple must match a lease currently in CHECKED_OUT, which
// is moved to PENDING_RETURN for the administrator to confirm.
func (h *RentHandler) SubmitReturn(c echo.Context) error {
	req := service.ReturnRequest{
		Phone: strings.TrimSpace(c.FormValue("phone")),
		KeyID: strings.TrimSpace(c.FormValue("key_id")),
		Date:  strings.TrimSpace(c.FormValue("date")),
	}
	lease, err := h.Svc.SubmitReturn(c.Request().Context(), req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("歸還登記完成！%s 已送出待確認。", lease.KeyID),
		"key_id":  lease.KeyID,
		"date":    lease.LeaseDate.Format(service.DateLayout),
		"status":  string(lease.Status),
	})
}
