package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/middleware"
	"github.com/iliyamo/dms-api/internal/resource"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

// ResourceHandler exposes a resource controller over HTTP.
type ResourceHandler struct {
	Ctrl *resource.Controller
}

func NewResourceHandler(ctrl *resource.Controller) *ResourceHandler {
	return &ResourceHandler{Ctrl: ctrl}
}

func (h *ResourceHandler) Create(c echo.Context) error {
	payload, err := bindRecord(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	return write(c, h.Ctrl.Create(ctx, payload, middleware.CallerFrom(c)))
}

func (h *ResourceHandler) FindAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	return write(c, h.Ctrl.FindAll(ctx, c.QueryParams(), middleware.CallerFrom(c)))
}

func (h *ResourceHandler) FindOne(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	return write(c, h.Ctrl.FindOne(ctx, c.Param("id"), c.QueryParam("fields")))
}

func (h *ResourceHandler) Update(c echo.Context) error {
	payload, err := bindRecord(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	return write(c, h.Ctrl.Update(ctx, c.Param("id"), payload, middleware.CallerFrom(c)))
}

// Delete soft deletes when the resource supports it; ?permanent=true
// removes the row.
func (h *ResourceHandler) Delete(c echo.Context) error {
	permanent, _ := strconv.ParseBool(c.QueryParam("permanent"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	return write(c, h.Ctrl.Delete(ctx, c.Param("id"), middleware.CallerFrom(c), permanent))
}

func write(c echo.Context, res resource.Result) error {
	return c.JSON(res.Status, res.Body)
}

// bindRecord decodes the JSON body into a record.  An empty body is an
// empty record.
func bindRecord(c echo.Context) (resource.Record, error) {
	payload := resource.Record{}
	if err := bindJSON(c, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
