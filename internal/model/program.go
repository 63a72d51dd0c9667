package model

import "time"

// Program is an event users can register for through the app.  The
// banner image lives in program_banners, split off the main row like
// receipt images and book covers.
type Program struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Date      string    `json:"date,omitempty"` // YYYY-MM-DD
	City      string    `json:"city,omitempty"`
	Place     string    `json:"place,omitempty"`
	HasBanner bool      `json:"has_banner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArchivedProgram is a program relocated to long-term storage.
type ArchivedProgram struct {
	Program
	ArchivedAt time.Time `json:"archived_at"`
}

// ProgramBanner is the base64 banner image for a program.
type ProgramBanner struct {
	ProgramID uint64 `json:"program_id"`
	Base64    string `json:"base64"`
}

// Schedule is one entry of the daily schedule page.  Position orders
// the entries for display.
type Schedule struct {
	ID        uint64 `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Position  int    `json:"position"`
}
