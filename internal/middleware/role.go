package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/response"
)

// RequireRole allows the request only when the caller's role name is one of
// roles.  Role names compare case-insensitively.  It must run after
// JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := CallerFrom(c)
			if caller.UserID == "" {
				return unauthorized(c, response.Unauthorized)
			}
			if !allowed[strings.ToLower(caller.RoleName)] {
				return c.JSON(http.StatusForbidden, response.Error(response.Forbidden, nil))
			}
			return next(c)
		}
	}
}
