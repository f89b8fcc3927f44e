package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/response"
)

// ErrorMode selects how much of an unexpected error reaches the client.
type ErrorMode int

const (
	// ErrorsHidden answers every unexpected failure with a generic message.
	ErrorsHidden ErrorMode = iota
	// ErrorsVerbose includes the error message.
	ErrorsVerbose
	// ErrorsDebug includes the message and a stack trace.
	ErrorsDebug
)

// HTTPErrorHandler renders every error that reaches echo as an envelope.
func HTTPErrorHandler(mode ErrorMode, log logrus.FieldLogger) echo.HTTPErrorHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, env := render(err, c, mode)
		if status >= http.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Request().URL.Path).Error("request failed")
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, env)
		}
		if werr != nil {
			log.WithError(werr).Warn("write error response")
		}
	}
}

func render(err error, c echo.Context, mode ErrorMode) (int, response.Envelope) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed:
			req := c.Request()
			return http.StatusNotFound, response.Error(fmt.Sprintf("Route %s %s not found", req.Method, req.URL.Path), nil)
		case he.Code == http.StatusBadRequest && isJSONError(he):
			return http.StatusBadRequest, response.Error(response.InvalidJSON, nil)
		case he.Code < http.StatusInternalServerError:
			return he.Code, response.Error(httpErrorMessage(he), nil)
		}
	}

	env := response.Error(response.ServerError, nil)
	if mode >= ErrorsVerbose {
		env.Error = err.Error()
	}
	if mode == ErrorsDebug {
		env.Stack = string(debug.Stack())
	}
	return http.StatusInternalServerError, env
}

func isJSONError(he *echo.HTTPError) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(he.Internal, &syn) || errors.As(he.Internal, &typ) || errors.Is(he.Internal, io.ErrUnexpectedEOF)
}

func httpErrorMessage(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok && msg != "" {
		return msg
	}
	return http.StatusText(he.Code)
}

// bindJSON binds an optional request body into dst.  A missing body leaves
// dst untouched; the binder rejects unsupported content types with 415.
func bindJSON(c echo.Context, dst any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// bearer returns the token of a "Bearer <token>" Authorization header.
func bearer(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}
