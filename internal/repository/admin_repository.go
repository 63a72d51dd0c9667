package repository

import (
	"context"
	"database/sql"

	"github.com/sribagavath/sbb-server/internal/model"
)

// AdminRepo manages the admin authorization records: admin_grants
// holds users with elevated access, admin_requests holds pending
// requests.  A user ID is never present in both at once; Approve
// performs the grant-create and request-delete as one transaction.
type AdminRepo struct {
	db *sql.DB
}

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

// IsAdmin reports whether the user holds a grant.
func (r *AdminRepo) IsAdmin(ctx context.Context, userID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_grants WHERE user_id = ?)`, userID).Scan(&exists)
	return exists, err
}

// HasRequest reports whether the user has a pending request.
func (r *AdminRepo) HasRequest(ctx context.Context, userID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_requests WHERE user_id = ?)`, userID).Scan(&exists)
	return exists, err
}

// UpsertRequest records an access request.  Requesting again simply
// refreshes the timestamp; there is never more than one row per user.
func (r *AdminRepo) UpsertRequest(ctx context.Context, userID uint64, email string) error {
	const q = `INSERT INTO admin_requests (user_id, email, requested_at) VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE email = VALUES(email), requested_at = NOW()`
	_, err := r.db.ExecContext(ctx, q, userID, email)
	return err
}

// Approve converts a pending request into a grant.  The insert and the
// request delete commit together so the two sets stay disjoint.  It
// returns ErrNotFound when no request exists for the user.
func (r *AdminRepo) Approve(ctx context.Context, userID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var email string
	err = tx.QueryRowContext(ctx,
		`SELECT email FROM admin_requests WHERE user_id = ?`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO admin_grants (user_id, email, granted_at) VALUES (?, ?, NOW())
		 ON DUPLICATE KEY UPDATE email = VALUES(email)`, userID, email); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM admin_requests WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Reject deletes a pending request without creating a grant.
func (r *AdminRepo) Reject(ctx context.Context, userID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_requests WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Revoke removes an existing grant.
func (r *AdminRepo) Revoke(ctx context.Context, userID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_grants WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRequests returns pending requests, oldest first.
func (r *AdminRepo) ListRequests(ctx context.Context) ([]model.AdminRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, email, requested_at FROM admin_requests ORDER BY requested_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AdminRequest, 0)
	for rows.Next() {
		var req model.AdminRequest
		if err := rows.Scan(&req.UserID, &req.Email, &req.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListGrants returns current administrators.
func (r *AdminRepo) ListGrants(ctx context.Context) ([]model.AdminGrant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, email, granted_at FROM admin_grants ORDER BY granted_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AdminGrant, 0)
	for rows.Next() {
		var g model.AdminGrant
		if err := rows.Scan(&g.UserID, &g.Email, &g.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
