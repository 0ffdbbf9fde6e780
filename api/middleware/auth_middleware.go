package middleware

import (
	"net/http"
	"strings"

	"fitzone/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware accepts HS256 bearer tokens minted by the login and
// verification routes. Role checks are left to RequireRole.
type AuthMiddleware struct {
	JWT    *utils.JWTManager
	Logger logrus.FieldLogger
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.JWT == nil {
			return m.reject(c, "no token manager")
		}
		token, ok := bearerToken(c.Request())
		if !ok {
			return m.reject(c, "missing bearer token")
		}
		claims, err := m.JWT.ParseAccessToken(token)
		if err != nil {
			return m.reject(c, err.Error())
		}
		SetAuthContext(c, claims.PrincipalID(), claims.Role)
		return next(c)
	}
}

func (m AuthMiddleware) reject(c echo.Context, reason string) error {
	if m.Logger != nil {
		m.Logger.WithFields(logrus.Fields{"route": c.Path(), "reason": reason}).Debug("bearer rejected")
	}
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="fitzone"`)
	return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
