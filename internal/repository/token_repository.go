package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dms-api/internal/model"
	"github.com/iliyamo/dms-api/internal/utils"
)

// TokenRepo persists auth_user_token rows.  Lookups go through the
// SHA-256 hash columns since the raw JWTs are too long to index.
type TokenRepo struct{ DB *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = "id, user_id, user_name, access_token, access_token_hash, refresh_token, refresh_token_hash, " +
	"expire_time, refresh_time, token_status, created_by, updated_by, created_date, updated_date"

// Create inserts a token row and sets its id.  Hash columns are filled
// from the raw tokens.
func (r *TokenRepo) Create(ctx context.Context, t *model.AuthToken) error {
	t.AccessHash = utils.HashToken(t.AccessToken)
	t.RefreshHash = utils.HashToken(t.RefreshToken)
	res, err := r.DB.NamedExecContext(ctx,
		`INSERT INTO auth_user_token (user_id, user_name, access_token, access_token_hash, refresh_token,
			refresh_token_hash, expire_time, refresh_time, token_status, created_by, updated_by, created_date, updated_date)
		VALUES (:user_id, :user_name, :access_token, :access_token_hash, :refresh_token,
			:refresh_token_hash, :expire_time, :refresh_time, :token_status, :created_by, :updated_by, :created_date, :updated_date)`,
		t)
	if err != nil {
		return translate("insert auth_user_token", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return translate("insert auth_user_token", err)
	}
	t.ID = id
	return nil
}

// FindByRefresh returns the row whose refresh token equals raw.
func (r *TokenRepo) FindByRefresh(ctx context.Context, raw string) (model.AuthToken, error) {
	return r.findOne(ctx, "refresh_token_hash", raw)
}

// FindByAccess returns the row whose access token equals raw.
func (r *TokenRepo) FindByAccess(ctx context.Context, raw string) (model.AuthToken, error) {
	return r.findOne(ctx, "access_token_hash", raw)
}

func (r *TokenRepo) findOne(ctx context.Context, hashCol, raw string) (model.AuthToken, error) {
	var t model.AuthToken
	query := fmt.Sprintf("SELECT %s FROM auth_user_token WHERE %s = ? LIMIT 1", tokenColumns, hashCol)
	if err := r.DB.GetContext(ctx, &t, query, utils.HashToken(raw)); err != nil {
		return model.AuthToken{}, translate("select auth_user_token", err)
	}
	// The raw value is the identity; the hash only serves the index.
	if t.AccessToken != raw && t.RefreshToken != raw {
		return model.AuthToken{}, fmt.Errorf("select auth_user_token: %w", ErrNotFound)
	}
	return t, nil
}

// UpdateAccess replaces the access token and expiry of row id and
// re-asserts the active status.
func (r *TokenRepo) UpdateAccess(ctx context.Context, id int64, access string, exp time.Time, updatedBy string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE auth_user_token SET access_token = ?, access_token_hash = ?, expire_time = ?,
			token_status = ?, updated_by = ?, updated_date = ? WHERE id = ?`,
		access, utils.HashToken(access), exp, model.TokenActive, updatedBy, now, id)
	return translate("update auth_user_token", err)
}

// SetStatus changes the status of row id.
func (r *TokenRepo) SetStatus(ctx context.Context, id int64, status string, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE auth_user_token SET token_status = ?, updated_date = ? WHERE id = ?",
		status, now, id)
	return translate("update auth_user_token", err)
}

// IsActive reports whether the access token belongs to an active row.
// Unknown tokens are reported inactive.
func (r *TokenRepo) IsActive(ctx context.Context, access string) (bool, error) {
	var status string
	err := r.DB.GetContext(ctx, &status,
		"SELECT token_status FROM auth_user_token WHERE access_token_hash = ? LIMIT 1",
		utils.HashToken(access))
	if err != nil {
		err = translate("select auth_user_token", err)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return status == model.TokenActive, nil
}
