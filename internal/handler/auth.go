package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dms-api/internal/resource"
	"github.com/iliyamo/dms-api/internal/response"
	"github.com/iliyamo/dms-api/internal/service"
)

// Authenticator is implemented by service.AuthService.
type Authenticator interface {
	Login(ctx context.Context, req service.LoginRequest) (service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error)
	Revoke(ctx context.Context, accessToken string) error
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	Auth Authenticator
}

func NewAuthHandler(a Authenticator) *AuthHandler {
	return &AuthHandler{Auth: a}
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type revokeReq struct {
	AccessToken string `json:"access_token"`
}

// tokenBody is the success envelope with the token fields at top level.
type tokenBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	service.TokenPair
}

func tokens(c echo.Context, msg string, pair service.TokenPair) error {
	return c.JSON(http.StatusOK, tokenBody{Success: true, Message: msg, TokenPair: pair})
}

// Login exchanges credentials for an access/refresh pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req)
	var verr *resource.ValidationError
	switch {
	case err == nil:
		return tokens(c, response.LoginSuccess, pair)
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, response.Error(response.ValidationError, verr.Fields))
	case service.IsAuthFailure(err):
		return c.JSON(http.StatusUnauthorized, response.Error(response.InvalidCredentials, nil))
	default:
		return err
	}
}

// Refresh issues a new access token for a live refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	switch {
	case err == nil:
		return tokens(c, response.TokenRefreshed, pair)
	case errors.Is(err, service.ErrInvalidRefresh):
		return c.JSON(http.StatusUnauthorized, response.Error(response.InvalidRefreshToken, nil))
	default:
		return err
	}
}

// Revoke marks the session owning an access token as revoked.  The token
// comes from the body or, failing that, the Authorization header.
func (h *AuthHandler) Revoke(c echo.Context) error {
	var req revokeReq
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	token := req.AccessToken
	if token == "" {
		token = bearer(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Auth.Revoke(ctx, token)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, response.Success(response.TokenRevoked, nil))
	case errors.Is(err, service.ErrTokenNotFound):
		return c.JSON(http.StatusNotFound, response.Error(response.TokenNotFound, nil))
	default:
		return err
	}
}
