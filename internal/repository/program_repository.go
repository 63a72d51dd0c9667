package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sribagavath/sbb-server/internal/model"
)

// ProgramRepo provides CRUD for programs and their banners, plus the
// copy-then-delete archival move into archived_programs.  The archival
// sequence is deliberately not wrapped in a transaction: each step is
// idempotent, and an interruption leaves the program present in both
// namespaces rather than in neither.
type ProgramRepo struct {
	db *sql.DB
}

func NewProgramRepo(db *sql.DB) *ProgramRepo { return &ProgramRepo{db: db} }

const programColumns = `id, name, category, date, city, place, has_banner, created_at, updated_at`

// List returns active programs, soonest date first.
func (r *ProgramRepo) List(ctx context.Context) ([]model.Program, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+programColumns+` FROM programs ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Program, 0)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID returns an active program.  ErrNotFound when absent.
func (r *ProgramRepo) GetByID(ctx context.Context, id uint64) (model.Program, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE id = ?`, id)
	p, err := scanProgram(row)
	if err == sql.ErrNoRows {
		return model.Program{}, ErrNotFound
	}
	return p, err
}

// Create inserts a program and populates its generated ID.
func (r *ProgramRepo) Create(ctx context.Context, p *model.Program) error {
	const q = `INSERT INTO programs (name, category, date, city, place) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Category, p.Date, p.City, p.Place)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// Update overwrites the editable fields of a program.
func (r *ProgramRepo) Update(ctx context.Context, p model.Program) error {
	const q = `UPDATE programs SET name = ?, category = ?, date = ?, city = ?, place = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Category, p.Date, p.City, p.Place, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a program and its banner from the active tables.
func (r *ProgramRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, _ = r.db.ExecContext(ctx, `DELETE FROM program_banners WHERE program_id = ?`, id)
	return nil
}

// SetBanner stores (or replaces) the banner image and flips has_banner.
func (r *ProgramRepo) SetBanner(ctx context.Context, programID uint64, base64 string) error {
	const q = `INSERT INTO program_banners (program_id, base64) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE base64 = VALUES(base64)`
	if _, err := r.db.ExecContext(ctx, q, programID, base64); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE programs SET has_banner = TRUE WHERE id = ?`, programID)
	return err
}

// GetBanner fetches the banner image.  ErrNotFound when absent.
func (r *ProgramRepo) GetBanner(ctx context.Context, programID uint64) (string, error) {
	var b64 string
	err := r.db.QueryRowContext(ctx,
		`SELECT base64 FROM program_banners WHERE program_id = ?`, programID).Scan(&b64)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return b64, err
}

// Archive relocates a program to archived_programs: copy the row with
// an archival timestamp, copy the banner, delete the banner, delete
// the row.  Copies come before deletes so an interruption can only
// leave the program in both places.
func (r *ProgramRepo) Archive(ctx context.Context, id uint64) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	const copyQ = `INSERT INTO archived_programs
		(id, name, category, date, city, place, has_banner, created_at, updated_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE archived_at = archived_at`
	if _, err := r.db.ExecContext(ctx, copyQ,
		p.ID, p.Name, p.Category, p.Date, p.City, p.Place, p.HasBanner,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("copy program to archive: %w", err)
	}
	const bannerQ = `INSERT INTO archived_program_banners (program_id, base64)
		SELECT program_id, base64 FROM program_banners WHERE program_id = ?
		ON DUPLICATE KEY UPDATE program_id = program_id`
	if _, err := r.db.ExecContext(ctx, bannerQ, id); err != nil {
		return fmt.Errorf("copy banner to archive: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM program_banners WHERE program_id = ?`, id); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id)
	return err
}

func scanProgram(s rowScanner) (model.Program, error) {
	var (
		p                           model.Program
		category, date, city, place sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &category, &date, &city, &place,
		&p.HasBanner, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Program{}, err
	}
	p.Category = category.String
	p.Date = date.String
	p.City = city.String
	p.Place = place.String
	return p, nil
}
