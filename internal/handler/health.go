package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/response"
)

// Version is reported by the root banner.
const Version = "1.0.0"

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the root banner and the liveness probe.
type HealthHandler struct {
	DB  Pinger
	Now func() time.Time
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{DB: db, Now: time.Now}
}

// Root describes the running service.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, response.Success("DMS API Server is running", map[string]any{
		"version":   Version,
		"timestamp": h.Now().UTC().Format(time.RFC3339),
		"endpoints": map[string]string{
			"auth":    "/auth",
			"role":    "/role",
			"user":    "/user",
			"health":  "/healthz",
			"metrics": "/metrics",
		},
	}))
}

// Health pings the database.
func (h *HealthHandler) Health(c echo.Context) error {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, response.Error("Database unavailable", nil))
		}
	}
	return c.String(http.StatusOK, "ok")
}
