package repository

import (
	"context"
	"database/sql"

	"github.com/sribagavath/sbb-server/internal/model"
)

// ScheduleRepo stores the entries of the daily schedule page.
type ScheduleRepo struct {
	db *sql.DB
}

func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// List returns all schedule entries in display order.
func (r *ScheduleRepo) List(ctx context.Context) ([]model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, notes, position FROM schedules ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Schedule, 0)
	for rows.Next() {
		var (
			s              model.Schedule
			endTime, notes sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.StartTime, &endTime, &notes, &s.Position); err != nil {
			return nil, err
		}
		s.EndTime = endTime.String
		s.Notes = notes.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a schedule entry and populates its generated ID.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	const q = `INSERT INTO schedules (title, start_time, end_time, notes, position) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Title, s.StartTime, s.EndTime, s.Notes, s.Position)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// Update overwrites a schedule entry.
func (r *ScheduleRepo) Update(ctx context.Context, s model.Schedule) error {
	const q = `UPDATE schedules SET title = ?, start_time = ?, end_time = ?, notes = ?, position = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, s.Title, s.StartTime, s.EndTime, s.Notes, s.Position, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a schedule entry.
func (r *ScheduleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
