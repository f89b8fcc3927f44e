package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/resource"
	"github.com/iliyamo/dms-api/internal/response"
	"github.com/iliyamo/dms-api/internal/utils"
)

// TokenChecker reports whether the record owning an access token is still
// active.  repository.TokenRepo satisfies it.
type TokenChecker interface {
	IsActive(ctx context.Context, access string) (bool, error)
}

// JWTConfig configures JWTAuth.
type JWTConfig struct {
	Issuer *utils.TokenIssuer
	// Tokens is optional; when nil revoked tokens are accepted until they
	// expire.
	Tokens TokenChecker
	// Required rejects requests without a bearer token.  When false the
	// header is optional but a present, invalid token is still rejected.
	Required bool
}

// JWTAuth verifies a Bearer access token and stores the caller it carries.
func JWTAuth(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				if cfg.Required {
					return unauthorized(c, response.Unauthorized)
				}
				return next(c)
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, response.Unauthorized)
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := cfg.Issuer.ParseAccess(raw)
			if err != nil {
				return unauthorized(c, response.TokenExpired)
			}
			if cfg.Tokens != nil {
				ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
				active, err := cfg.Tokens.IsActive(ctx, raw)
				cancel()
				if err != nil {
					return err
				}
				if !active {
					return unauthorized(c, response.TokenExpired)
				}
			}

			SetCaller(c, resource.Caller{
				UserID:   claimString(claims.User, "user_id"),
				RoleName: claimString(claims.User, "role_name"),
			})
			return next(c)
		}
	}
}

func claimString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, response.Error(msg, nil))
}
