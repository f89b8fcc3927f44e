package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random token ids
	"crypto/sha256" // SHA-256 digests for indexed token lookups
	"encoding/hex"  // hex encoding of digests and ids
	"errors"
	"fmt"
	"time" // expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned for any token that fails signature, method,
// expiry or claim checks.  Callers should not distinguish the causes when
// answering clients.
var ErrInvalidToken = errors.New("invalid token")

// SignedToken is a serialized JWT together with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// AccessClaims is the payload of an access token.  User carries the whole
// sanitized user record so handlers can authorize without a database hit.
type AccessClaims struct {
	User map[string]any `json:"user"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.  It embeds only the
// user's uid.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.  Access and refresh tokens
// use independent secrets and lifetimes so a leaked access secret cannot
// mint refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer builds an issuer.  Both secrets must be non-empty.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token issuer: access and refresh secrets are required")
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the time source; used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// IssueAccess signs a short-lived token embedding user.
func (i *TokenIssuer) IssueAccess(user map[string]any) (SignedToken, error) {
	claims := AccessClaims{User: user}
	exp, err := i.register(&claims.RegisteredClaims, i.accessTTL)
	if err != nil {
		return SignedToken{}, err
	}
	return sign(claims, i.accessSecret, exp)
}

// IssueRefresh signs a long-lived token embedding only the user's uid.
func (i *TokenIssuer) IssueRefresh(userUID string) (SignedToken, error) {
	claims := RefreshClaims{UserID: userUID}
	exp, err := i.register(&claims.RegisteredClaims, i.refreshTTL)
	if err != nil {
		return SignedToken{}, err
	}
	return sign(claims, i.refreshSecret, exp)
}

// ParseAccess verifies raw with the access secret.
func (i *TokenIssuer) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(raw, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies raw with the refresh secret and returns the
// embedded user uid.
func (i *TokenIssuer) ParseRefresh(raw string) (string, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims, i.refreshSecret); err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	return claims.UserID, nil
}

// register fills the standard claims.  A random jti keeps two tokens issued
// in the same second distinct.
func (i *TokenIssuer) register(rc *jwt.RegisteredClaims, ttl time.Duration) (time.Time, error) {
	jti, err := randomHex(16)
	if err != nil {
		return time.Time{}, err
	}
	now := i.now()
	exp := now.Add(ttl)
	rc.ID = jti
	rc.IssuedAt = jwt.NewNumericDate(now)
	rc.ExpiresAt = jwt.NewNumericDate(exp)
	return exp, nil
}

func (i *TokenIssuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC so a token cannot pick its own algorithm.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

func sign(claims jwt.Claims, secret []byte, exp time.Time) (SignedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// HashToken returns the SHA-256 hex digest of a raw token.  Token rows are
// looked up by this digest.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
