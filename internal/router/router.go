// Package router maps URLs onto handlers.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/handler"
)

// Resource is one CRUD resource mounted at /<Path>.
type Resource struct {
	Path       string
	Handler    *handler.ResourceHandler
	Middleware []echo.MiddlewareFunc
}

// Routes collects everything RegisterRoutes mounts.  Nil handlers are
// skipped.
type Routes struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	// AuthMiddleware wraps the /auth group, typically the rate limiter.
	AuthMiddleware []echo.MiddlewareFunc
	Metrics        http.Handler
	Resources      []Resource
}

// RegisterRoutes installs the service banner, probes, auth endpoints and
// every resource.
func RegisterRoutes(e *echo.Echo, r Routes) {
	if r.Health != nil {
		e.GET("/", r.Health.Root)
		e.GET("/healthz", r.Health.Health)
	}
	if r.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(r.Metrics))
	}
	if r.Auth != nil {
		RegisterAuth(e, r.Auth, r.AuthMiddleware...)
	}
	for _, res := range r.Resources {
		RegisterResource(e, res.Path, res.Handler, res.Middleware...)
	}
}

// RegisterAuth mounts login, refresh and revoke under /auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/auth", mw...)
	g.POST("/token", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/revoke", a.Revoke)
}

// RegisterResource mounts the standard CRUD routes for one resource.
func RegisterResource(e *echo.Echo, path string, h *handler.ResourceHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/"+path, mw...)
	g.POST("", h.Create)
	g.GET("", h.FindAll)
	g.GET("/:id", h.FindOne)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
