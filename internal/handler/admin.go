package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chenwt/key-reservation/internal/model"
	"github.com/chenwt/key-reservation/internal/service"
)

// AdminHandler exposes the administrator endpoints: reviewing leases,
// driving the lease lifecycle, and replacing the key catalog.  All routes
// sit behind JWTAuth plus RequireRole("ADMIN").
type AdminHandler struct {
	Svc *service.Booking
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc *service.Booking) *AdminHandler {
	if svc == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{Svc: svc}
}

type updateStatusReq struct {
	KeyID  string `json:"key_id"`
	Phone  string `json:"phone"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

// UpdateLeaseStatus handles PATCH /v1/admin/leases/status.  The lease is
// located by the exact (key_id, phone, date) triple.  Moving a lease to
// RETURNED stamps the actual return time and freezes it; any later update
// gets 409.
func (h *AdminHandler) UpdateLeaseStatus(c echo.Context) error {
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	lease, err := h.Svc.AdminUpdateStatus(c.Request().Context(),
		strings.TrimSpace(req.KeyID), strings.TrimSpace(req.Phone),
		strings.TrimSpace(req.Date), strings.TrimSpace(req.Status))
	if err != nil {
		return writeServiceError(c, err)
	}
	resp := echo.Map{
		"key_id": lease.KeyID,
		"date":   lease.LeaseDate.Format(service.DateLayout),
		"status": string(lease.Status),
	}
	if lease.ReturnedAt != nil {
		resp["returned_at"] = lease.ReturnedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

type replaceKeysReq struct {
	Keys []service.KeyEntry `json:"keys"`
}

// ReplaceKeys handles PUT /v1/admin/keys.  The catalog is replaced
// wholesale: existing entries are cleared and the submitted list is
// inserted in order.  Blank-named entries are dropped silently.
func (h *AdminHandler) ReplaceKeys(c echo.Context) error {
	var req replaceKeysReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	kept, err := h.Svc.ReplaceKeys(c.Request().Context(), req.Keys)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"kept": kept})
}

type leaseItem struct {
	ID         uint64   `json:"id"`
	KeyID      string   `json:"key_id"`
	RenterName string   `json:"renter_name"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	Date       string   `json:"date"`
	Weekday    string   `json:"weekday"`
	Slots      []string `json:"slots"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"created_at"`
	ReturnedAt *string  `json:"returned_at,omitempty"`
}

// ListLeases handles GET /v1/admin/leases?key_id=&date=.  It returns the
// leases for one key in insertion order, optionally filtered to a date.
func (h *AdminHandler) ListLeases(c echo.Context) error {
	leases, err := h.Svc.ListLeases(c.Request().Context(),
		strings.TrimSpace(c.QueryParam("key_id")), strings.TrimSpace(c.QueryParam("date")))
	if err != nil {
		return writeServiceError(c, err)
	}
	items := make([]leaseItem, 0, len(leases))
	for i := range leases {
		items = append(items, leaseToItem(&leases[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func leaseToItem(l *model.Lease) leaseItem {
	item := leaseItem{
		ID:         l.ID,
		KeyID:      l.KeyID,
		RenterName: l.RenterName,
		Phone:      l.Phone,
		Email:      l.Email,
		Date:       l.LeaseDate.Format(service.DateLayout),
		Weekday:    l.Weekday(),
		Slots:      l.Slots,
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.ReturnedAt != nil {
		s := l.ReturnedAt.UTC().Format(time.RFC3339)
		item.ReturnedAt = &s
	}
	return item
}
