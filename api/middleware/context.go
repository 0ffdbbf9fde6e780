package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	contextPrincipalIDKey = "auth_principal_id"
	contextRoleKey        = "auth_role"
)

func SetAuthContext(c echo.Context, principalID string, role string) {
	c.Set(contextPrincipalIDKey, principalID)
	c.Set(contextRoleKey, role)
}

func PrincipalIDFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextPrincipalIDKey)
	principalID, ok := value.(string)
	return principalID, ok && principalID != ""
}

func RoleFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextRoleKey)
	role, ok := value.(string)
	return role, ok
}
