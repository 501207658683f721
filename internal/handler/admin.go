package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slimmermetai/auth-core/internal/service"
)

// AdminHandler holds maintenance endpoints reserved for the admin role.
type AdminHandler struct {
	Auth *service.AuthService
}

// CleanupTokens: POST /api/admin/tokens/cleanup. Deletes expired e-mail
// tokens, blacklist entries and refresh tokens on demand.
func (h *AdminHandler) CleanupTokens(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Auth.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "deleted": n})
}
