package model

import "time"

// StatsTotals is the single running-totals row kept in stats_totals.
// It is mutated by atomic increments on every transaction create,
// delete and receipt write, and can be fully recomputed by rescanning
// the active and archived tables (see StatsService.Recalculate).
type StatsTotals struct {
	Programs       int64     `json:"total_programs"`
	Participants   int64     `json:"total_participants"`
	BookOrders     int64     `json:"total_book_orders"`
	BookRevenue    int64     `json:"total_book_revenue"`
	Donations      int64     `json:"total_donations"`
	DonationAmount int64     `json:"total_donation_amount"`
	Receipts       int64     `json:"total_receipts"`
	ImageBytes     int64     `json:"total_image_bytes"`
	Logins         int64     `json:"total_logins"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatsDelta carries the per-field increments (or decrements, when
// negative) applied to StatsTotals in a single atomic update.  Zero
// fields are left untouched.
type StatsDelta struct {
	Programs       int64
	Participants   int64
	BookOrders     int64
	BookRevenue    int64
	Donations      int64
	DonationAmount int64
	Receipts       int64
	ImageBytes     int64
	Logins         int64
}

// IsZero reports whether the delta would change nothing.
func (d StatsDelta) IsZero() bool { return d == StatsDelta{} }

// Neg returns the delta with every field negated, used to undo the
// increments applied when a transaction was created.
func (d StatsDelta) Neg() StatsDelta {
	return StatsDelta{
		Programs:       -d.Programs,
		Participants:   -d.Participants,
		BookOrders:     -d.BookOrders,
		BookRevenue:    -d.BookRevenue,
		Donations:      -d.Donations,
		DonationAmount: -d.DonationAmount,
		Receipts:       -d.Receipts,
		ImageBytes:     -d.ImageBytes,
		Logins:         -d.Logins,
	}
}
