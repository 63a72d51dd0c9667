// Package queue defines the message payloads exchanged over the
// broker and the background consumer that records them.
package queue

// OrderRecordedEvent is published after a transaction has been
// persisted.  It carries enough information for downstream consumers
// to log or notify without querying the primary database.  The receipt
// image is never included.
type OrderRecordedEvent struct {
	TransactionID string `json:"transaction_id"`
	ItemType      string `json:"item_type"`
	ItemName      string `json:"item_name"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	UserID        uint64 `json:"user_id,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	RecordedAt    string `json:"recorded_at"`
}
