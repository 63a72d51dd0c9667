package repository

import (
	"context"
	"database/sql"

	"github.com/sribagavath/sbb-server/internal/model"
)

// BookRepo provides catalog CRUD for printed books.  Cover images live
// in book_covers so the catalog listing stays light.
type BookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookColumns = `id, title, author, category, price, description, has_cover, created_at, updated_at`

// List returns the full catalog ordered by title, the storefront sort.
func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetByID returns a single book.  ErrNotFound when absent.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return model.Book{}, ErrNotFound
	}
	return b, err
}

// GetByIDs returns the subset of books matching the given IDs, used to
// price a cart at checkout.
func (r *BookRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Book, error) {
	out := make(map[uint64]model.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + bookColumns + ` FROM books WHERE id IN (?`
	args := []any{ids[0]}
	for _, id := range ids[1:] {
		q += ",?"
		args = append(args, id)
	}
	q += ")"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out[b.ID] = b
	}
	return out, rows.Err()
}

// Create inserts a book and populates its generated ID.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	const q = `INSERT INTO books (title, author, category, price, description) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.Title, b.Author, b.Category, b.Price, b.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// Update overwrites the editable fields of a book.
func (r *BookRepo) Update(ctx context.Context, b model.Book) error {
	const q = `UPDATE books SET title = ?, author = ?, category = ?, price = ?, description = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, b.Title, b.Author, b.Category, b.Price, b.Description, b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a book and its cover.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, _ = r.db.ExecContext(ctx, `DELETE FROM book_covers WHERE book_id = ?`, id)
	return nil
}

// SetCover stores (or replaces) the cover image and flips has_cover.
func (r *BookRepo) SetCover(ctx context.Context, bookID uint64, base64 string) error {
	const q = `INSERT INTO book_covers (book_id, base64) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE base64 = VALUES(base64)`
	if _, err := r.db.ExecContext(ctx, q, bookID, base64); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE books SET has_cover = TRUE WHERE id = ?`, bookID)
	return err
}

// GetCover fetches the cover image.  ErrNotFound when absent.
func (r *BookRepo) GetCover(ctx context.Context, bookID uint64) (string, error) {
	var b64 string
	err := r.db.QueryRowContext(ctx,
		`SELECT base64 FROM book_covers WHERE book_id = ?`, bookID).Scan(&b64)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return b64, err
}

func scanBook(s rowScanner) (model.Book, error) {
	var (
		b                             model.Book
		author, category, description sql.NullString
	)
	err := s.Scan(&b.ID, &b.Title, &author, &category, &b.Price, &description,
		&b.HasCover, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Book{}, err
	}
	b.Author = author.String
	b.Category = category.String
	b.Description = description.String
	return b, nil
}
