package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sribagavath/sbb-server/internal/model"
)

// StatsRepo maintains the single running-totals row in stats_totals
// plus the per-day and per-location login counters.  Increments use a
// single upsert so concurrent writers never lose updates; the row is
// created on first touch.
type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// column names in stats_totals, paired with the delta accessors.
var statsColumns = []struct {
	name string
	get  func(model.StatsDelta) int64
}{
	{"total_programs", func(d model.StatsDelta) int64 { return d.Programs }},
	{"total_participants", func(d model.StatsDelta) int64 { return d.Participants }},
	{"total_book_orders", func(d model.StatsDelta) int64 { return d.BookOrders }},
	{"total_book_revenue", func(d model.StatsDelta) int64 { return d.BookRevenue }},
	{"total_donations", func(d model.StatsDelta) int64 { return d.Donations }},
	{"total_donation_amount", func(d model.StatsDelta) int64 { return d.DonationAmount }},
	{"total_receipts", func(d model.StatsDelta) int64 { return d.Receipts }},
	{"total_image_bytes", func(d model.StatsDelta) int64 { return d.ImageBytes }},
	{"total_logins", func(d model.StatsDelta) int64 { return d.Logins }},
}

// Increment applies the non-zero fields of the delta atomically.
func (r *StatsRepo) Increment(ctx context.Context, d model.StatsDelta) error {
	if d.IsZero() {
		return nil
	}
	cols := make([]string, 0, len(statsColumns))
	updates := make([]string, 0, len(statsColumns))
	args := make([]any, 0, len(statsColumns))
	for _, c := range statsColumns {
		v := c.get(d)
		if v == 0 {
			continue
		}
		cols = append(cols, c.name)
		updates = append(updates, c.name+" = "+c.name+" + VALUES("+c.name+")")
		args = append(args, v)
	}
	q := "INSERT INTO stats_totals (id, " + strings.Join(cols, ", ") + ") VALUES (1" +
		strings.Repeat(", ?", len(cols)) + ") ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// Get returns the current totals.  A missing row reads as all zeros.
func (r *StatsRepo) Get(ctx context.Context) (model.StatsTotals, error) {
	const q = `SELECT total_programs, total_participants, total_book_orders, total_book_revenue,
		total_donations, total_donation_amount, total_receipts, total_image_bytes,
		total_logins, updated_at FROM stats_totals WHERE id = 1`
	var t model.StatsTotals
	err := r.db.QueryRowContext(ctx, q).Scan(
		&t.Programs, &t.Participants, &t.BookOrders, &t.BookRevenue,
		&t.Donations, &t.DonationAmount, &t.Receipts, &t.ImageBytes,
		&t.Logins, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.StatsTotals{}, nil
	}
	return t, err
}

// Replace overwrites the recomputed columns with freshly scanned
// values.  The login counter is preserved: logins cannot be derived
// from the transaction tables, so a recalculation never touches it.
func (r *StatsRepo) Replace(ctx context.Context, t model.StatsTotals) error {
	const q = `INSERT INTO stats_totals
		(id, total_programs, total_participants, total_book_orders, total_book_revenue,
		 total_donations, total_donation_amount, total_receipts, total_image_bytes)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		 total_programs = VALUES(total_programs),
		 total_participants = VALUES(total_participants),
		 total_book_orders = VALUES(total_book_orders),
		 total_book_revenue = VALUES(total_book_revenue),
		 total_donations = VALUES(total_donations),
		 total_donation_amount = VALUES(total_donation_amount),
		 total_receipts = VALUES(total_receipts),
		 total_image_bytes = VALUES(total_image_bytes)`
	_, err := r.db.ExecContext(ctx, q,
		t.Programs, t.Participants, t.BookOrders, t.BookRevenue,
		t.Donations, t.DonationAmount, t.Receipts, t.ImageBytes)
	return err
}

// Scan recomputes the totals from the active and archived tables.  It
// is the reconciliation path, not the steady-state one: the result is
// meant to be written back via Replace.
func (r *StatsRepo) Scan(ctx context.Context) (model.StatsTotals, error) {
	var t model.StatsTotals

	// Programs: active + archived.
	const progQ = `SELECT
		(SELECT COUNT(*) FROM programs) + (SELECT COUNT(*) FROM archived_programs)`
	if err := r.db.QueryRowContext(ctx, progQ).Scan(&t.Programs); err != nil {
		return t, err
	}

	// Transactions grouped by item type across both tables.
	const txQ = `SELECT item_type,
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(CASE WHEN item_type = 'PROGRAM_REGISTRATION'
				THEN GREATEST(COALESCE(JSON_EXTRACT(registration_json, '$.participant_count'), 0),
					COALESCE(JSON_LENGTH(registration_json, '$.participants'), 0), 1)
				ELSE 0 END), 0)
		FROM (
			SELECT item_type, amount, registration_json FROM transactions
			UNION ALL
			SELECT item_type, amount, registration_json FROM archived_transactions
		) all_tx
		GROUP BY item_type`
	rows, err := r.db.QueryContext(ctx, txQ)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			itemType            string
			count, sum, persons int64
		)
		if err := rows.Scan(&itemType, &count, &sum, &persons); err != nil {
			return t, err
		}
		switch model.ItemType(itemType) {
		case model.ItemBookOrder:
			t.BookOrders = count
			t.BookRevenue = sum
		case model.ItemDonation:
			t.Donations = count
			t.DonationAmount = sum
		case model.ItemProgramRegistration:
			t.Participants = persons
		}
	}
	if err := rows.Err(); err != nil {
		return t, err
	}

	// Receipt images: count plus decoded byte volume (base64 carries
	// ~3 payload bytes per 4 characters) across active and archived.
	const imgQ = `SELECT COUNT(*), COALESCE(SUM(LENGTH(base64) * 3 DIV 4), 0) FROM (
			SELECT base64 FROM transaction_images
			UNION ALL
			SELECT base64 FROM archived_transaction_images
		) all_images`
	if err := r.db.QueryRowContext(ctx, imgQ).Scan(&t.Receipts, &t.ImageBytes); err != nil {
		return t, err
	}

	// Banner volume joins the image total.
	const bannerQ = `SELECT COALESCE(SUM(LENGTH(base64) * 3 DIV 4), 0) FROM (
			SELECT base64 FROM program_banners
			UNION ALL
			SELECT base64 FROM archived_program_banners
			UNION ALL
			SELECT base64 FROM book_covers
		) all_banners`
	var bannerBytes int64
	if err := r.db.QueryRowContext(ctx, bannerQ).Scan(&bannerBytes); err != nil {
		return t, err
	}
	t.ImageBytes += bannerBytes
	t.UpdatedAt = time.Now().UTC()
	return t, nil
}

// IncrementDailyLogin bumps the login counter for a calendar day
// (YYYY-MM-DD) and the month roll-up (YYYY-MM).
func (r *StatsRepo) IncrementDailyLogin(ctx context.Context, day string) error {
	const q = `INSERT INTO stats_logins (day, count) VALUES (?, 1)
		ON DUPLICATE KEY UPDATE count = count + 1`
	if _, err := r.db.ExecContext(ctx, q, day); err != nil {
		return err
	}
	month := day
	if len(day) >= 7 {
		month = day[:7]
	}
	const mq = `INSERT INTO stats_logins_monthly (month, count) VALUES (?, 1)
		ON DUPLICATE KEY UPDATE count = count + 1`
	if _, err := r.db.ExecContext(ctx, mq, month); err != nil {
		return err
	}
	return r.Increment(ctx, model.StatsDelta{Logins: 1})
}

// IncrementGeoLogin bumps the counter for a location bucket within a
// month (YYYY-MM).
func (r *StatsRepo) IncrementGeoLogin(ctx context.Context, month, location string) error {
	const q = `INSERT INTO stats_geo_logins (month, location, count) VALUES (?, ?, 1)
		ON DUPLICATE KEY UPDATE count = count + 1`
	_, err := r.db.ExecContext(ctx, q, month, location)
	return err
}

// GeoLogins returns location counts for a month, highest first.
func (r *StatsRepo) GeoLogins(ctx context.Context, month string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT location, count FROM stats_geo_logins WHERE month = ? ORDER BY count DESC`, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			loc string
			n   int64
		)
		if err := rows.Scan(&loc, &n); err != nil {
			return nil, err
		}
		out[loc] = n
	}
	return out, rows.Err()
}
