package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chenwt/key-reservation/internal/model"
	"github.com/chenwt/key-reservation/internal/service"
)

// CatalogHandler serves the read-only key catalog and the fixed daily
// schedule.  Both endpoints sit behind the Redis response cache.
type CatalogHandler struct {
	Svc *service.Booking
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(svc *service.Booking) *CatalogHandler {
	if svc == nil {
		panic("nil service passed to NewCatalogHandler")
	}
	return &CatalogHandler{Svc: svc}
}

type keyItem struct {
	KeyID    string  `json:"key_id"`
	Label    string  `json:"label"`
	ImageURL *string `json:"image_url,omitempty"`
}

// ListKeys handles GET /v1/keys.  It returns the catalog in stored order.
func (h *CatalogHandler) ListKeys(c echo.Context) error {
	keys, err := h.Svc.ListKeys(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	items := make([]keyItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, keyItem{KeyID: k.KeyID, Label: k.Label, ImageURL: k.ImageURL})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSchedule handles GET /v1/schedule.  The timetable is process-wide
// reference data, identical for every key.
func (h *CatalogHandler) GetSchedule(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": model.Schedule})
}
