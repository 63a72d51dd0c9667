// Package workflow encodes which order status transitions an
// administrator may drive for each item type.  The graph is not
// forward-only: every forward step has a matching reversal so a
// mis-clicked transition can be undone.  Archival is not part of the
// graph; it is a relocation out of the active tables and only valid
// from COMPLETED.
package workflow

import "github.com/sribagavath/sbb-server/internal/model"

// transitions maps item type -> source status -> allowed targets.
// Physical book orders pass through SHIPPED; donations and program
// registrations do not.  REJECTED is reachable from every non-terminal
// state and has no outgoing edges.
var transitions = map[model.ItemType]map[model.Status][]model.Status{
	model.ItemBookOrder: {
		model.StatusPending:    {model.StatusProcessing, model.StatusRejected},
		model.StatusProcessing: {model.StatusPending, model.StatusShipped, model.StatusRejected},
		model.StatusShipped:    {model.StatusProcessing, model.StatusCompleted, model.StatusRejected},
		model.StatusCompleted:  {model.StatusShipped},
	},
	model.ItemDonation: {
		model.StatusPending:    {model.StatusProcessing, model.StatusRejected},
		model.StatusProcessing: {model.StatusPending, model.StatusCompleted, model.StatusRejected},
		model.StatusCompleted:  {model.StatusProcessing},
	},
	model.ItemProgramRegistration: {
		model.StatusPending:    {model.StatusProcessing, model.StatusRejected},
		model.StatusProcessing: {model.StatusPending, model.StatusCompleted, model.StatusRejected},
		model.StatusCompleted:  {model.StatusProcessing},
	},
}

// CanTransition reports whether moving a transaction of the given item
// type from one status to another is a legal administrative action.
func CanTransition(item model.ItemType, from, to model.Status) bool {
	targets, ok := transitions[item][from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions for
// the given item type.
func Terminal(item model.ItemType, s model.Status) bool {
	return len(transitions[item][s]) == 0
}

// Bucket is the tab an admin view files a transaction under.
type Bucket string

const (
	BucketPending    Bucket = "PENDING"
	BucketProcessing Bucket = "PROCESSING"
	BucketShipped    Bucket = "SHIPPED"
	BucketCompleted  Bucket = "COMPLETED"
	BucketRejected   Bucket = "REJECTED"
)

// Classify files a status into its admin tab.  Any status value that
// is not one of the recognized non-pending states lands in the PENDING
// bucket, so legacy or unknown statuses surface as new work instead of
// disappearing.
func Classify(s model.Status) Bucket {
	switch s {
	case model.StatusProcessing:
		return BucketProcessing
	case model.StatusShipped:
		return BucketShipped
	case model.StatusCompleted:
		return BucketCompleted
	case model.StatusRejected:
		return BucketRejected
	}
	return BucketPending
}
