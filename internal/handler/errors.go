package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chenwt/key-reservation/internal/service"
)

// writeServiceError translates booking service errors into HTTP responses.
// Every error is terminal for the request; the caller resubmits with
// corrected parameters, nothing is retried server-side.
func writeServiceError(c echo.Context, err error) error {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "slots already booked",
			"key_id":    conflict.KeyID,
			"conflicts": conflict.Slots,
		})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrBadPassword):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid password"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no matching lease"})
	case errors.Is(err, service.ErrFrozen):
		return c.JSON(http.StatusConflict, echo.Map{"error": "lease already returned"})
	case errors.Is(err, service.ErrBadTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "illegal status transition"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away mid-request (likely during the wrong-password delay).
		return err
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
