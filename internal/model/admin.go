package model

import "time"

// AdminGrant marks a user as an administrator.  Keyed by user ID; a
// user never holds a grant and a pending request at the same time,
// because approval deletes the request in the same operation that
// creates the grant.
type AdminGrant struct {
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email"`
	GrantedAt time.Time `json:"granted_at"`
}

// AdminRequest is a signed-in user's pending request for admin access.
// Requesting twice overwrites the existing row rather than appending.
type AdminRequest struct {
	UserID      uint64    `json:"user_id"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requested_at"`
}
