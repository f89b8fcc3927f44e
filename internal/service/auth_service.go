// Package service holds the token lifecycle and the audit event publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/metrics"
	"github.com/iliyamo/dms-api/internal/model"
	"github.com/iliyamo/dms-api/internal/queue"
	"github.com/iliyamo/dms-api/internal/resource"
	"github.com/iliyamo/dms-api/internal/utils"
)

// Authentication failures.  Handlers answer all of them with a uniform
// message so clients cannot tell which check failed.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
	ErrTokenNotFound      = errors.New("token not found")
)

// TokenStore persists token records.
type TokenStore interface {
	Create(ctx context.Context, t *model.AuthToken) error
	FindByRefresh(ctx context.Context, raw string) (model.AuthToken, error)
	FindByAccess(ctx context.Context, raw string) (model.AuthToken, error)
	UpdateAccess(ctx context.Context, id int64, access string, exp time.Time, updatedBy string, now time.Time) error
	SetStatus(ctx context.Context, id int64, status string, now time.Time) error
}

// LoginRequest identifies a user by code or email.
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is returned by Login and Refresh.  Refresh leaves RefreshToken
// empty since the refresh token is not rotated.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthService implements login, refresh and revoke.
type AuthService struct {
	users      resource.Store
	userSchema *resource.Schema
	tokens     TokenStore
	issuer     *utils.TokenIssuer
	events     resource.EventSink
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewAuthService wires the service.  events may be nil.
func NewAuthService(users resource.Store, userSchema *resource.Schema, tokens TokenStore,
	issuer *utils.TokenIssuer, events resource.EventSink, log logrus.FieldLogger) *AuthService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthService{
		users:      users,
		userSchema: userSchema,
		tokens:     tokens,
		issuer:     issuer,
		events:     events,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials and persists a new token record.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (TokenPair, error) {
	code := strings.TrimSpace(req.UserID)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if code == "" && email == "" {
		return TokenPair{}, resource.NewValidationError("user_id", "required", "Either `user_id` or `email` is required.", nil)
	}
	if req.Password == "" {
		return TokenPair{}, resource.NewValidationError("password", "required", "Path `password` is required.", nil)
	}

	ident := code
	if ident == "" {
		ident = email
	}
	where := []resource.Condition{{Field: "status", Op: resource.OpEq, Value: model.UserActive}}
	if code != "" {
		where = append(where, resource.Condition{Field: "user_id", Op: resource.OpEq, Value: code})
	} else {
		where = append(where, resource.Condition{Field: "email", Op: resource.OpEq, Value: email})
	}
	user, err := s.users.FindOne(ctx, s.userSchema, where, nil)
	if errors.Is(err, resource.ErrNotFound) {
		return TokenPair{}, s.fail(ctx, "login", ident, ErrInvalidCredentials)
	}
	if err != nil {
		return TokenPair{}, s.fail(ctx, "login", ident, fmt.Errorf("load user: %w", err))
	}
	if !utils.VerifyPassword(user.String("password"), req.Password) {
		return TokenPair{}, s.fail(ctx, "login", ident, ErrInvalidCredentials)
	}

	sanitized := s.userSchema.Public(user)
	access, err := s.issuer.IssueAccess(sanitized)
	if err != nil {
		return TokenPair{}, s.fail(ctx, "login", ident, fmt.Errorf("issue access: %w", err))
	}
	refresh, err := s.issuer.IssueRefresh(user.String(resource.FieldUID))
	if err != nil {
		return TokenPair{}, s.fail(ctx, "login", ident, fmt.Errorf("issue refresh: %w", err))
	}

	userID, _ := user.ID()
	actor := user.String("user_id")
	now := s.now()
	rec := &model.AuthToken{
		UserID:       userID,
		UserName:     user.String("name"),
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpireTime:   access.Exp,
		RefreshTime:  refresh.Exp,
		Status:       model.TokenActive,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		CreatedDate:  now,
		UpdatedDate:  now,
	}
	if err := s.tokens.Create(ctx, rec); err != nil {
		return TokenPair{}, s.fail(ctx, "login", actor, fmt.Errorf("save token: %w", err))
	}

	s.succeed(ctx, "login", actor, rec.ID)
	return TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token, ExpiresAt: access.Exp}, nil
}

// Refresh mints a new access token for an active refresh token.  The
// record keeps its refresh token.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, s.fail(ctx, "refresh", "", ErrInvalidRefresh)
	}
	tok, err := s.tokens.FindByRefresh(ctx, raw)
	if err != nil {
		return TokenPair{}, s.fail(ctx, "refresh", "", fmt.Errorf("%w: %v", ErrInvalidRefresh, err))
	}
	if !tok.Active() {
		return TokenPair{}, s.fail(ctx, "refresh", tok.CreatedBy, fmt.Errorf("%w: status %s", ErrInvalidRefresh, tok.Status))
	}
	uid, err := s.issuer.ParseRefresh(raw)
	if err != nil {
		return TokenPair{}, s.fail(ctx, "refresh", tok.CreatedBy, fmt.Errorf("%w: %v", ErrInvalidRefresh, err))
	}

	user, err := s.users.FindOne(ctx, s.userSchema, []resource.Condition{
		{Field: resource.FieldID, Op: resource.OpEq, Value: tok.UserID},
		{Field: "status", Op: resource.OpEq, Value: model.UserActive},
	}, nil)
	if err != nil {
		return TokenPair{}, s.fail(ctx, "refresh", tok.CreatedBy, fmt.Errorf("%w: user: %v", ErrInvalidRefresh, err))
	}
	if user.String(resource.FieldUID) != uid {
		return TokenPair{}, s.fail(ctx, "refresh", tok.CreatedBy, fmt.Errorf("%w: subject mismatch", ErrInvalidRefresh))
	}

	access, err := s.issuer.IssueAccess(s.userSchema.Public(user))
	if err != nil {
		return TokenPair{}, s.fail(ctx, "refresh", tok.CreatedBy, fmt.Errorf("issue access: %w", err))
	}
	actor := user.String("user_id")
	if err := s.tokens.UpdateAccess(ctx, tok.ID, access.Token, access.Exp, actor, s.now()); err != nil {
		return TokenPair{}, s.fail(ctx, "refresh", actor, fmt.Errorf("update token: %w", err))
	}

	s.succeed(ctx, "refresh", actor, tok.ID)
	return TokenPair{AccessToken: access.Token, ExpiresAt: access.Exp}, nil
}

// Revoke marks the record owning the access token as revoked.  Revoking an
// already revoked token succeeds.
func (s *AuthService) Revoke(ctx context.Context, access string) error {
	access = strings.TrimSpace(access)
	if access == "" {
		return s.fail(ctx, "revoke", "", ErrTokenNotFound)
	}
	tok, err := s.tokens.FindByAccess(ctx, access)
	if errors.Is(err, resource.ErrNotFound) {
		return s.fail(ctx, "revoke", "", ErrTokenNotFound)
	}
	if err != nil {
		return s.fail(ctx, "revoke", "", fmt.Errorf("load token: %w", err))
	}
	if err := s.tokens.SetStatus(ctx, tok.ID, model.TokenRevoked, s.now()); err != nil {
		return s.fail(ctx, "revoke", tok.UpdatedBy, fmt.Errorf("update token: %w", err))
	}
	s.succeed(ctx, "revoke", tok.UpdatedBy, tok.ID)
	return nil
}

// IsAuthFailure reports whether err should be answered with 401.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidRefresh)
}

func (s *AuthService) succeed(ctx context.Context, event, actor string, tokenID int64) {
	metrics.RecordAuthEvent(event, "success")
	s.log.WithField("event", event).WithField("actor", actor).WithField("token_id", tokenID).Info("auth event")
	s.publish(ctx, event, actor, fmt.Sprint(tokenID), "success")
}

func (s *AuthService) fail(ctx context.Context, event, actor string, err error) error {
	outcome := "failure"
	if !IsAuthFailure(err) && !errors.Is(err, ErrTokenNotFound) {
		outcome = "error"
	}
	metrics.RecordAuthEvent(event, outcome)
	s.log.WithField("event", event).WithField("actor", actor).WithError(err).Warn("auth rejected")
	s.publish(ctx, event, actor, "", outcome)
	return err
}

func (s *AuthService) publish(ctx context.Context, event, actor, recordID, outcome string) {
	if s.events == nil {
		return
	}
	ev := queue.AuditEvent{
		Kind:       queue.KindAuth,
		Resource:   "AuthUserToken",
		Action:     event,
		RecordID:   recordID,
		Actor:      actor,
		Outcome:    outcome,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithField("event", event).WithError(err).Warn("audit publish failed")
	}
}
