package repository

import (
	"context"
	"database/sql"

	"github.com/sribagavath/sbb-server/internal/model"
)

// ReceiptRepo stores payment proof images in transaction_images, one
// row per transaction, keyed by the transaction ID.  Keeping the
// base64 payload out of the transactions table keeps the frequently
// scanned rows small; the image is fetched on demand only.
type ReceiptRepo struct {
	db *sql.DB
}

func NewReceiptRepo(db *sql.DB) *ReceiptRepo { return &ReceiptRepo{db: db} }

// Create writes the receipt image row for a transaction.
func (r *ReceiptRepo) Create(ctx context.Context, img model.ReceiptImage) error {
	const q = `INSERT INTO transaction_images (id, base64, user_id, device_id) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		img.TransactionID, img.Base64, nullUint(img.Owner.UserID), nullStr(img.Owner.DeviceID))
	return err
}

// Get fetches the image for a transaction.  ErrNotFound when absent.
func (r *ReceiptRepo) Get(ctx context.Context, txID string) (model.ReceiptImage, error) {
	const q = `SELECT id, base64, user_id, device_id FROM transaction_images WHERE id = ?`
	var (
		img      model.ReceiptImage
		userID   sql.NullInt64
		deviceID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, txID).Scan(&img.TransactionID, &img.Base64, &userID, &deviceID)
	if err == sql.ErrNoRows {
		return model.ReceiptImage{}, ErrNotFound
	}
	if err != nil {
		return model.ReceiptImage{}, err
	}
	if userID.Valid {
		img.Owner.UserID = uint64(userID.Int64)
	}
	img.Owner.DeviceID = deviceID.String
	return img, nil
}

// Delete removes the image row.  Deleting an absent image is not an
// error; the caller treats image cleanup as best effort.
func (r *ReceiptRepo) Delete(ctx context.Context, txID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transaction_images WHERE id = ?`, txID)
	return err
}

// CopyToArchive duplicates the image row into the archived table.  The
// copy is idempotent so an interrupted archival can be repeated.
func (r *ReceiptRepo) CopyToArchive(ctx context.Context, txID string) error {
	const q = `INSERT INTO archived_transaction_images (id, base64, user_id, device_id)
		SELECT id, base64, user_id, device_id FROM transaction_images WHERE id = ?
		ON DUPLICATE KEY UPDATE id = id`
	_, err := r.db.ExecContext(ctx, q, txID)
	return err
}

// GetArchived fetches an image from the archived table.
func (r *ReceiptRepo) GetArchived(ctx context.Context, txID string) (model.ReceiptImage, error) {
	const q = `SELECT id, base64, user_id, device_id FROM archived_transaction_images WHERE id = ?`
	var (
		img      model.ReceiptImage
		userID   sql.NullInt64
		deviceID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, txID).Scan(&img.TransactionID, &img.Base64, &userID, &deviceID)
	if err == sql.ErrNoRows {
		return model.ReceiptImage{}, ErrNotFound
	}
	if err != nil {
		return model.ReceiptImage{}, err
	}
	if userID.Valid {
		img.Owner.UserID = uint64(userID.Int64)
	}
	img.Owner.DeviceID = deviceID.String
	return img, nil
}
