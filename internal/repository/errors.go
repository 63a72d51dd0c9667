// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow handlers to
// distinguish failure scenarios: ErrNotFound maps to HTTP 404,
// ErrForbidden to 403, and ErrConflict to 409 (e.g. deleting a
// program that still has registrations recorded against it).
package repository

import "errors"

// ErrNotFound is returned when a record does not exist in the active
// working set.  Archived records do not satisfy active lookups.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// record owned by someone else.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot proceed
// because of dependent records.
var ErrConflict = errors.New("conflict")
