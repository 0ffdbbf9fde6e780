package middleware

import (
	"net/http"

	"fitzone/internal/entity"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects tokens minted for another principal kind. An end-user
// token never opens an admin route and the other way round.
func RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			currentRole, ok := RoleFromContext(c)
			if !ok || currentRole != string(role) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
