package model

import "time"

// Book is a catalog entry in the printed books store.  The cover image
// is stored separately in book_covers (same split as receipt images)
// so that listing the catalog stays cheap.
//
// Fields:
//
//	ID          – primary key identifier.
//	Title       – book title, the catalog sort key.
//	Author      – author name.
//	Category    – free-form grouping used by the storefront.
//	Price       – price in whole rupees.
//	Description – long description shown on the detail page.
//	HasCover    – whether a cover row exists in book_covers.
type Book struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       int64     `json:"price"`
	Description string    `json:"description,omitempty"`
	HasCover    bool      `json:"has_cover"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookCover is the base64 cover image for a book.
type BookCover struct {
	BookID uint64 `json:"book_id"`
	Base64 string `json:"base64"`
}
