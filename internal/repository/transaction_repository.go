package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sribagavath/sbb-server/internal/model"
)

// TransactionRepo provides CRUD operations for transactions in both
// the active and the archived tables.  The variant payloads (order,
// donor, registration) are stored as JSON columns so the row layout is
// the same for every item type; the Go model re-exposes them as a
// tagged union.  All timestamps are stored in UTC.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a repo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// DB exposes the underlying handle for callers that need to compose
// repository calls with others.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

const txColumns = `id, item_type, item_name, amount, status, has_image, comments,
	order_json, donor_json, registration_json, user_id, device_id, created_at, updated_at`

// Create inserts a new transaction row.  The caller is responsible for
// generating the ID and setting the initial status.
func (r *TransactionRepo) Create(ctx context.Context, tx *model.Transaction) error {
	orderJSON, donorJSON, regJSON, err := marshalVariants(tx)
	if err != nil {
		return err
	}
	const q = `INSERT INTO transactions
		(id, item_type, item_name, amount, status, has_image, comments,
		 order_json, donor_json, registration_json, user_id, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q,
		tx.ID, string(tx.ItemType), tx.ItemName, tx.Amount, string(tx.Status), tx.HasImage, tx.Comments,
		orderJSON, donorJSON, regJSON, nullUint(tx.Owner.UserID), nullStr(tx.Owner.DeviceID))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	// Query back to populate the DB-generated timestamps.
	const sel = `SELECT created_at, updated_at FROM transactions WHERE id = ?`
	if err := r.db.QueryRowContext(ctx, sel, tx.ID).Scan(&tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return err
	}
	return nil
}

// GetByID returns a transaction from the active table.  ErrNotFound is
// returned when no row exists.
func (r *TransactionRepo) GetByID(ctx context.Context, id string) (model.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return model.Transaction{}, ErrNotFound
	}
	return tx, err
}

// ListAll returns every active transaction, newest first.  This backs
// the admin live view; the bucket split happens in the handler.
func (r *TransactionRepo) ListAll(ctx context.Context) ([]model.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListByOwner returns the transactions belonging to the given identity.
// The query filters on a single indexed column (user_id or device_id);
// recency ordering is applied in memory so no composite index is
// required.
func (r *TransactionRepo) ListByOwner(ctx context.Context, owner model.Owner) ([]model.Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if owner.ByAccount() {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+txColumns+` FROM transactions WHERE user_id = ?`, owner.UserID)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+txColumns+` FROM transactions WHERE device_id = ?`, owner.DeviceID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}

// UpdateStatus sets the status and comments on a single transaction.
// Comments are always written: a transition without a note clears
// whatever note the previous transition left, so reversals never carry
// a stale remark forward.  Workflow legality is enforced by the
// service layer before this is called.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id string, status model.Status, comments string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, comments = ? WHERE id = ?`, string(status), comments, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a transaction from the active table.  It returns
// ErrNotFound when no row was deleted.
func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDsByStatus returns the IDs of active transactions in the given
// status, used by the batch archive/delete operations.
func (r *TransactionRepo) ListIDsByStatus(ctx context.Context, status model.Status) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE status = ?`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasForProgram reports whether any live registration references the
// program.  Archived registrations don't count; they no longer block
// program archival.
func (r *TransactionRepo) HasForProgram(ctx context.Context, programID uint64) (bool, error) {
	const q = `SELECT EXISTS(
		SELECT 1 FROM transactions
		WHERE item_type = 'PROGRAM_REGISTRATION'
		  AND JSON_EXTRACT(registration_json, '$.program_id') = ?
		LIMIT 1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, programID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CopyToArchive writes the transaction into archived_transactions with
// the given archival timestamp.  The copy is idempotent: repeating it
// after a partial archive neither duplicates the row nor moves the
// original archival timestamp.
func (r *TransactionRepo) CopyToArchive(ctx context.Context, tx model.Transaction, archivedAt time.Time) error {
	orderJSON, donorJSON, regJSON, err := marshalVariants(&tx)
	if err != nil {
		return err
	}
	const q = `INSERT INTO archived_transactions
		(id, item_type, item_name, amount, status, has_image, comments,
		 order_json, donor_json, registration_json, user_id, device_id,
		 created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE archived_at = archived_at`
	_, err = r.db.ExecContext(ctx, q,
		tx.ID, string(tx.ItemType), tx.ItemName, tx.Amount, string(tx.Status), tx.HasImage, tx.Comments,
		orderJSON, donorJSON, regJSON, nullUint(tx.Owner.UserID), nullStr(tx.Owner.DeviceID),
		tx.CreatedAt.UTC(), tx.UpdatedAt.UTC(), archivedAt.UTC())
	if err != nil {
		return fmt.Errorf("copy to archive: %w", err)
	}
	return nil
}

// ListArchived returns the archived transactions, newest archival first.
func (r *TransactionRepo) ListArchived(ctx context.Context) ([]model.ArchivedTransaction, error) {
	q := `SELECT ` + txColumns + `, archived_at FROM archived_transactions ORDER BY archived_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ArchivedTransaction
	for rows.Next() {
		var (
			at  model.ArchivedTransaction
			err error
		)
		at.Transaction, at.ArchivedAt, err = scanArchived(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// GetArchived looks a transaction up in the archive.
func (r *TransactionRepo) GetArchived(ctx context.Context, id string) (model.ArchivedTransaction, error) {
	q := `SELECT ` + txColumns + `, archived_at FROM archived_transactions WHERE id = ?`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return model.ArchivedTransaction{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.ArchivedTransaction{}, err
		}
		return model.ArchivedTransaction{}, ErrNotFound
	}
	var at model.ArchivedTransaction
	at.Transaction, at.ArchivedAt, err = scanArchived(rows)
	return at, err
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(s rowScanner, tx *model.Transaction, extra ...any) error {
	var (
		itemType, status              string
		comments                      sql.NullString
		orderJSON, donorJSON, regJSON sql.NullString
		userID                        sql.NullInt64
		deviceID                      sql.NullString
	)
	dest := []any{
		&tx.ID, &itemType, &tx.ItemName, &tx.Amount, &status, &tx.HasImage, &comments,
		&orderJSON, &donorJSON, &regJSON, &userID, &deviceID, &tx.CreatedAt, &tx.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		return err
	}
	tx.ItemType = model.ItemType(itemType)
	tx.Status = model.Status(status)
	tx.Comments = comments.String
	if userID.Valid {
		tx.Owner.UserID = uint64(userID.Int64)
	}
	tx.Owner.DeviceID = deviceID.String
	if orderJSON.Valid && orderJSON.String != "" {
		var od model.OrderDetails
		if err := json.Unmarshal([]byte(orderJSON.String), &od); err != nil {
			return fmt.Errorf("decode order payload for %s: %w", tx.ID, err)
		}
		tx.Order = &od
	}
	if donorJSON.Valid && donorJSON.String != "" {
		var dd model.DonorDetails
		if err := json.Unmarshal([]byte(donorJSON.String), &dd); err != nil {
			return fmt.Errorf("decode donor payload for %s: %w", tx.ID, err)
		}
		tx.Donor = &dd
	}
	if regJSON.Valid && regJSON.String != "" {
		var rd model.RegistrationDetails
		if err := json.Unmarshal([]byte(regJSON.String), &rd); err != nil {
			return fmt.Errorf("decode registration payload for %s: %w", tx.ID, err)
		}
		tx.Registration = &rd
	}
	return nil
}

func scanTransaction(s rowScanner) (model.Transaction, error) {
	var tx model.Transaction
	err := scanInto(s, &tx)
	return tx, err
}

func scanArchived(s rowScanner) (model.Transaction, time.Time, error) {
	var (
		tx         model.Transaction
		archivedAt time.Time
	)
	err := scanInto(s, &tx, &archivedAt)
	return tx, archivedAt, err
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	txs := make([]model.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func marshalVariants(tx *model.Transaction) (order, donor, reg any, err error) {
	order, err = marshalOrNil(tx.Order)
	if err != nil {
		return nil, nil, nil, err
	}
	donor, err = marshalOrNil(tx.Donor)
	if err != nil {
		return nil, nil, nil, err
	}
	reg, err = marshalOrNil(tx.Registration)
	if err != nil {
		return nil, nil, nil, err
	}
	return order, donor, reg, nil
}

func marshalOrNil(v any) (any, error) {
	switch t := v.(type) {
	case *model.OrderDetails:
		if t == nil {
			return nil, nil
		}
	case *model.DonorDetails:
		if t == nil {
			return nil, nil
		}
	case *model.RegistrationDetails:
		if t == nil {
			return nil, nil
		}
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

func nullUint(v uint64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
