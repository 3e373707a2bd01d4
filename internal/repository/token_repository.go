package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// TokenRepo persists refresh tokens. Rows are keyed by the signed token
// string; a user may hold several rows at once (one per login).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// SaveToken stores a refresh token for a user, replacing the owner when the
// token string already exists. Returns ErrUserNotFound when the owning
// account does not exist or is soft-deleted.
func (r *TokenRepo) SaveToken(ctx context.Context, token, userID string) error {
	var id string
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE id=? AND deleted_at IS NULL LIMIT 1",
		userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO tokens (id, token, user_id) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE user_id=VALUES(user_id)`,
		uuid.NewString(), token, userID)
	return err
}

// DeleteToken removes a refresh token row and reports whether a row was
// actually deleted. Deleting a missing token is not an error.
func (r *TokenRepo) DeleteToken(ctx context.Context, token string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tokens WHERE token=?", token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
