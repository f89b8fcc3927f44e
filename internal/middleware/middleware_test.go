package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dms-api/internal/config"
	"github.com/iliyamo/dms-api/internal/resource"
	"github.com/iliyamo/dms-api/internal/utils"
)

type checker struct {
	active bool
	err    error
}

func (c checker) IsActive(context.Context, string) (bool, error) { return c.active, c.err }

func newIssuer(t *testing.T) *utils.TokenIssuer {
	t.Helper()
	iss, err := utils.NewTokenIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	return iss
}

// serve runs mw in front of a handler that echoes the caller.
func serve(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, resource.Caller) {
	t.Helper()
	e := echo.New()
	var seen resource.Caller
	e.GET("/role", func(c echo.Context) error {
		seen = CallerFrom(c)
		return c.NoContent(http.StatusNoContent)
	}, mw)
	req := httptest.NewRequest(http.MethodGet, "/role", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTAuthSetsCaller(t *testing.T) {
	iss := newIssuer(t)
	tok, err := iss.IssueAccess(map[string]any{"user_id": "ADM001", "role_name": "Admin"})
	require.NoError(t, err)

	rec, caller := serve(t, JWTAuth(JWTConfig{Issuer: iss, Tokens: checker{active: true}, Required: true}), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, resource.Caller{UserID: "ADM001", RoleName: "Admin"}, caller)
}

func TestJWTAuthOptional(t *testing.T) {
	iss := newIssuer(t)
	rec, caller := serve(t, JWTAuth(JWTConfig{Issuer: iss}), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "system", caller.Actor())

	rec, _ = serve(t, JWTAuth(JWTConfig{Issuer: iss}), "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejects(t *testing.T) {
	iss := newIssuer(t)
	tok, err := iss.IssueAccess(map[string]any{"user_id": "ADM001"})
	require.NoError(t, err)

	cases := map[string]struct {
		cfg    JWTConfig
		header string
	}{
		"missing header": {JWTConfig{Issuer: iss, Required: true}, ""},
		"not bearer":     {JWTConfig{Issuer: iss, Required: true}, "Basic abc"},
		"revoked record": {JWTConfig{Issuer: iss, Tokens: checker{active: false}}, "Bearer " + tok.Token},
		"foreign secret": {JWTConfig{Issuer: mustIssuer(t, "other")}, "Bearer " + tok.Token},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := serve(t, JWTAuth(tc.cfg), tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestJWTAuthCheckerError(t *testing.T) {
	iss := newIssuer(t)
	tok, err := iss.IssueAccess(map[string]any{"user_id": "ADM001"})
	require.NoError(t, err)

	rec, _ := serve(t, JWTAuth(JWTConfig{Issuer: iss, Tokens: checker{err: errors.New("db down")}}), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func mustIssuer(t *testing.T, secret string) *utils.TokenIssuer {
	t.Helper()
	iss, err := utils.NewTokenIssuer(secret, secret, time.Minute, time.Hour)
	require.NoError(t, err)
	return iss
}

func TestRequireRole(t *testing.T) {
	withCaller := func(caller resource.Caller) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				SetCaller(c, caller)
				return RequireRole("Admin")(next)(c)
			}
		}
	}

	rec, _ := serve(t, withCaller(resource.Caller{UserID: "ADM001", RoleName: "admin"}), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = serve(t, withCaller(resource.Caller{UserID: "CUS001", RoleName: "Customer"}), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = serve(t, withCaller(resource.Caller{}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCachePassThroughWithoutRedis(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: []string{"GET"}}, nil, "role", nil)
	assert.NoError(t, rc.Invalidate(context.Background()))

	rec, _ := serve(t, rc.Middleware(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.JSONEq(t, `{"success":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.overflow())
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.overflow())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/token")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	for strategy, want := range map[string]string{
		"ip":       "rl:ip:10.0.0.1",
		"user":     "rl:user:anon",
		"ip_route": "rl:ip:10.0.0.1:route:POST /auth/token",
		"":         "rl:ip:10.0.0.1:user:anon:route:POST /auth/token",
	} {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, rateKey(cfg, c), strategy)
	}

	SetCaller(c, resource.Caller{UserID: "ADM001"})
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:ADM001", rateKey(cfg, c))
}

func TestTokenBucketDisabled(t *testing.T) {
	rec, _ := serve(t, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, retryAfterSeconds(1500))
	assert.Equal(t, 0, retryAfterSeconds(-10))
}
