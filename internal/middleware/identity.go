package middleware

// identity.go carries the authenticated caller between middleware and
// handlers.  Requests without a verified token resolve to the zero Caller,
// which stamps "system" into audit columns.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/resource"
)

const callerKey = "caller"

// SetCaller stores the caller on the echo context.
func SetCaller(c echo.Context, caller resource.Caller) {
	c.Set(callerKey, caller)
}

// CallerFrom returns the caller stored by JWTAuth, or the zero Caller.
func CallerFrom(c echo.Context) resource.Caller {
	if v, ok := c.Get(callerKey).(resource.Caller); ok {
		return v
	}
	return resource.Caller{}
}

// actorKey is used by the rate limiter for per-user buckets.
func actorKey(c echo.Context) string {
	if id := CallerFrom(c).UserID; id != "" {
		return id
	}
	return "anon"
}
