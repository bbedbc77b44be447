package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chenwt/key-reservation/internal/config"
	"github.com/chenwt/key-reservation/internal/utils"
)

// AuthHandler issues administrator sessions.  There is exactly one
// administrator account, configured by ADMIN_USER / ADMIN_PASS_HASH; no
// registration or refresh flow exists.
type AuthHandler struct {
	Cfg config.Config
}

// NewAuthHandler constructs an AuthHandler bound to the given config.
func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{Cfg: cfg}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login.  On valid credentials it returns a
// short-lived HS256 access token with an ADMIN role claim.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}
	if req.Username != h.Cfg.AdminUser || !utils.VerifyPassword(h.Cfg.AdminPassHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, req.Username, "ADMIN", h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":   access.Token,
		"expires": access.Exp.Format(time.RFC3339),
	})
}

// Me handles GET /v1/admin/me and echoes the authenticated identity, which
// is useful for session checks from the admin UI.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"subject": c.Get("subject"),
		"role":    c.Get("role"),
	})
}
