package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh tokens.  Only the SHA-256 hash of a
// token ever reaches the database; the raw value lives with the
// client.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh records a freshly minted token hash for a user.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// Rotate retires the presented token and reports which user held it.
// The lookup and the revocation run in one database transaction with
// the row locked, so two concurrent refreshes carrying the same token
// cannot both succeed: the loser finds no live row and gets
// ErrNotFound, the same answer an unknown, revoked, or expired token
// gets.
func (r *TokenRepo) Rotate(ctx context.Context, tokenHash string) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var (
		userID    uint64
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash=? AND revoked_at IS NULL FOR UPDATE",
		tokenHash).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=?", tokenHash); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

// RevokeAllForUser revokes every active token a user holds.  Used on
// logout.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
