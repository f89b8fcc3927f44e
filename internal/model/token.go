package model

import "time"

// Token status values.  Expiry is enforced by signature verification at use
// time, so no expired status is written.
const (
	TokenActive  = "active"
	TokenRevoked = "revoked"
)

// AuthToken represents a row in the `auth_user_token` table.  One row is
// written per login; refresh replaces the access token in place and revoke
// flips the status.  Rows are never deleted by the service.
//
// The raw tokens are kept so they can be returned and compared; the hash
// columns carry the SHA-256 hex digest used for indexed lookups.
type AuthToken struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"` // users.id
	UserName     string    `db:"user_name"`
	AccessToken  string    `db:"access_token"`
	AccessHash   string    `db:"access_token_hash"`
	RefreshToken string    `db:"refresh_token"`
	RefreshHash  string    `db:"refresh_token_hash"`
	ExpireTime   time.Time `db:"expire_time"`  // access expiry
	RefreshTime  time.Time `db:"refresh_time"` // refresh expiry
	Status       string    `db:"token_status"`
	CreatedBy    string    `db:"created_by"`
	UpdatedBy    string    `db:"updated_by"`
	CreatedDate  time.Time `db:"created_date"`
	UpdatedDate  time.Time `db:"updated_date"`
}

// Active reports whether the record may still be used.
func (t AuthToken) Active() bool { return t.Status == TokenActive }
