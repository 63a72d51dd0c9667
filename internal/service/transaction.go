// Package service implements the business rules that sit between the
// HTTP handlers and the repositories: transaction recording and
// lifecycle, and the running statistics counters.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/stream"
	"github.com/sribagavath/sbb-server/internal/workflow"
)

var (
	// ErrInvalid is returned when a draft transaction fails validation.
	// Handlers translate it to 400; the wrapped message says what was
	// missing.
	ErrInvalid = errors.New("invalid transaction")

	// ErrIllegalTransition is returned when a status update would skip
	// or reverse past the steps the item type's workflow allows.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// TransactionStore is the persistence surface the service needs for
// transaction rows.  *repository.TransactionRepo satisfies it.
type TransactionStore interface {
	Create(ctx context.Context, tx *model.Transaction) error
	GetByID(ctx context.Context, id string) (model.Transaction, error)
	ListAll(ctx context.Context) ([]model.Transaction, error)
	ListByOwner(ctx context.Context, owner model.Owner) ([]model.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, comments string) error
	Delete(ctx context.Context, id string) error
	ListIDsByStatus(ctx context.Context, status model.Status) ([]string, error)
	HasForProgram(ctx context.Context, programID uint64) (bool, error)
	CopyToArchive(ctx context.Context, tx model.Transaction, archivedAt time.Time) error
	ListArchived(ctx context.Context) ([]model.ArchivedTransaction, error)
	GetArchived(ctx context.Context, id string) (model.ArchivedTransaction, error)
}

// ReceiptStore is the persistence surface for receipt images.
// *repository.ReceiptRepo satisfies it.
type ReceiptStore interface {
	Create(ctx context.Context, img model.ReceiptImage) error
	Get(ctx context.Context, txID string) (model.ReceiptImage, error)
	Delete(ctx context.Context, txID string) error
	CopyToArchive(ctx context.Context, txID string) error
	GetArchived(ctx context.Context, txID string) (model.ReceiptImage, error)
}

// TransactionService records purchases, donations and registrations
// and drives them through their fulfilment workflow.  Side effects
// that are not part of the order of record (stats counters, the broker
// event) run through dispatch so a failure there never fails the
// request.
type TransactionService struct {
	txs      TransactionStore
	receipts ReceiptStore
	stats    *StatsService
	hub      *stream.Hub
	publish  func(tx model.Transaction)

	// dispatch runs fire-and-forget side effects.  Tests replace it
	// with an inline call so the effects are observable.
	dispatch func(fn func())
}

// NewTransactionService wires the service.  stats, hub and publish may
// be nil; the corresponding side effects are then skipped.
func NewTransactionService(txs TransactionStore, receipts ReceiptStore, stats *StatsService, hub *stream.Hub, publish func(tx model.Transaction)) *TransactionService {
	return &TransactionService{
		txs:      txs,
		receipts: receipts,
		stats:    stats,
		hub:      hub,
		publish:  publish,
		dispatch: func(fn func()) { go fn() },
	}
}

// NewBookOrderDraft builds a BOOK_ORDER transaction from cart lines
// priced against the catalog.  The amount is the sum of line totals
// and the item name summarises the titles.
func NewBookOrderDraft(items []model.OrderItem, shipping model.ShippingDetails) model.Transaction {
	var total int64
	name := "Order:"
	for i, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
		if i > 0 {
			name += ","
		}
		name += fmt.Sprintf(" %s x%d", it.Title, it.Quantity)
	}
	return model.Transaction{
		ItemType: model.ItemBookOrder,
		ItemName: name,
		Amount:   total,
		Order:    &model.OrderDetails{Items: items, Shipping: shipping},
	}
}

// Record validates the draft, persists it with a fresh ID in PENDING,
// stores the receipt image when one was uploaded, and kicks off the
// stats and broker side effects.  The stored transaction is returned.
func (s *TransactionService) Record(ctx context.Context, draft model.Transaction, imageBase64 string) (model.Transaction, error) {
	if err := validateDraft(draft); err != nil {
		return model.Transaction{}, err
	}

	draft.ID = uuid.NewString()
	draft.Status = model.StatusPending
	draft.HasImage = imageBase64 != ""

	if err := s.txs.Create(ctx, &draft); err != nil {
		return model.Transaction{}, err
	}
	if imageBase64 != "" {
		img := model.ReceiptImage{TransactionID: draft.ID, Base64: imageBase64, Owner: draft.Owner}
		if err := s.receipts.Create(ctx, img); err != nil {
			// The order of record survives a lost receipt; a missing
			// image is repaired by hand, a vanished order is not.
			log.Printf("transaction %s: receipt write failed, keeping order without image: %v", draft.ID, err)
			imageBase64 = ""
			draft.HasImage = false
		}
	}

	recorded := draft
	s.dispatch(func() {
		if s.stats != nil {
			s.stats.ApplyRecorded(context.Background(), recorded, int64(len(imageBase64)))
		}
		if s.publish != nil {
			s.publish(recorded)
		}
	})
	s.notify(recorded)
	return recorded, nil
}

// UpdateStatus moves a transaction one step along its workflow.  The
// transition is validated server side; clients cannot skip steps or
// resurrect terminal orders.
func (s *TransactionService) UpdateStatus(ctx context.Context, id string, to model.Status, comments string) (model.Transaction, error) {
	tx, err := s.txs.GetByID(ctx, id)
	if err != nil {
		return model.Transaction{}, err
	}
	if !workflow.CanTransition(tx.ItemType, tx.Status, to) {
		return model.Transaction{}, fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, tx.ItemType, tx.Status, to)
	}
	if err := s.txs.UpdateStatus(ctx, id, to, comments); err != nil {
		return model.Transaction{}, err
	}
	tx.Status = to
	tx.Comments = comments
	tx.UpdatedAt = time.Now().UTC()
	s.notify(tx)
	return tx, nil
}

// Delete removes a transaction and its receipt image and reverses the
// stats increments applied at creation.  The image delete is best
// effort: a missing image row is not an error.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	tx, err := s.txs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var imageBytes int64
	if tx.HasImage {
		if img, err := s.receipts.Get(ctx, id); err == nil {
			imageBytes = int64(len(img.Base64))
		}
		if err := s.receipts.Delete(ctx, id); err != nil {
			log.Printf("transaction %s: receipt delete failed: %v", id, err)
		}
	}
	if err := s.txs.Delete(ctx, id); err != nil {
		return err
	}
	s.dispatch(func() {
		if s.stats != nil {
			s.stats.ApplyDeleted(context.Background(), tx, imageBytes)
		}
	})
	s.notify(tx)
	return nil
}

// Archive relocates a transaction and its receipt image into the
// archived tables and then deletes the live rows.  The copies are
// idempotent, so a run interrupted after the copy but before the
// delete resumes cleanly on retry.  Archiving does not touch the
// running totals; archived rows still count.
func (s *TransactionService) Archive(ctx context.Context, id string) error {
	tx, err := s.txs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.txs.CopyToArchive(ctx, tx, time.Now().UTC()); err != nil {
		return err
	}
	if tx.HasImage {
		if err := s.receipts.CopyToArchive(ctx, id); err != nil {
			return err
		}
		if err := s.receipts.Delete(ctx, id); err != nil {
			log.Printf("transaction %s: receipt delete after archive failed: %v", id, err)
		}
	}
	if err := s.txs.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(tx)
	return nil
}

// ArchiveAllCompleted archives every COMPLETED transaction and returns
// how many were moved.  Each order is archived independently; one
// failure does not abort the rest.
func (s *TransactionService) ArchiveAllCompleted(ctx context.Context) (int, error) {
	ids, err := s.txs.ListIDsByStatus(ctx, model.StatusCompleted)
	if err != nil {
		return 0, err
	}
	moved := 0
	var lastErr error
	for _, id := range ids {
		if err := s.Archive(ctx, id); err != nil {
			log.Printf("archive %s failed: %v", id, err)
			lastErr = err
			continue
		}
		moved++
	}
	return moved, lastErr
}

// DeleteAllCompleted permanently deletes every COMPLETED transaction,
// reversing its stats, and returns how many were removed.
func (s *TransactionService) DeleteAllCompleted(ctx context.Context) (int, error) {
	ids, err := s.txs.ListIDsByStatus(ctx, model.StatusCompleted)
	if err != nil {
		return 0, err
	}
	removed := 0
	var lastErr error
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			log.Printf("delete %s failed: %v", id, err)
			lastErr = err
			continue
		}
		removed++
	}
	return removed, lastErr
}

// Receipt returns the receipt image for a transaction, falling back to
// the archive when the live row has already been moved.
func (s *TransactionService) Receipt(ctx context.Context, id string) (model.ReceiptImage, error) {
	img, err := s.receipts.Get(ctx, id)
	if err == nil {
		return img, nil
	}
	return s.receipts.GetArchived(ctx, id)
}

func (s *TransactionService) notify(tx model.Transaction) {
	if s.hub != nil {
		s.hub.Notify(tx)
	}
}

func validateDraft(tx model.Transaction) error {
	if !tx.ItemType.Valid() {
		return fmt.Errorf("%w: unknown item type %q", ErrInvalid, tx.ItemType)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalid)
	}
	if tx.Owner.UserID == 0 && tx.Owner.DeviceID == "" {
		return fmt.Errorf("%w: no owner", ErrInvalid)
	}
	switch tx.ItemType {
	case model.ItemBookOrder:
		if tx.Order == nil || len(tx.Order.Items) == 0 {
			return fmt.Errorf("%w: book order has no items", ErrInvalid)
		}
		sh := tx.Order.Shipping
		if sh.Name == "" || sh.Mobile == "" || sh.Address == "" || sh.City == "" || sh.Pincode == "" {
			return fmt.Errorf("%w: incomplete shipping details", ErrInvalid)
		}
		for _, it := range tx.Order.Items {
			if it.Quantity <= 0 {
				return fmt.Errorf("%w: non-positive quantity for %q", ErrInvalid, it.Title)
			}
		}
	case model.ItemDonation:
		if tx.Donor == nil || tx.Donor.Name == "" || tx.Donor.Mobile == "" {
			return fmt.Errorf("%w: donation needs donor name and mobile", ErrInvalid)
		}
		if tx.Amount <= 0 {
			return fmt.Errorf("%w: donation amount must be positive", ErrInvalid)
		}
	case model.ItemProgramRegistration:
		if tx.Registration == nil {
			return fmt.Errorf("%w: registration payload missing", ErrInvalid)
		}
		if tx.Registration.PrimaryApplicant.Name == "" {
			return fmt.Errorf("%w: registration needs a primary applicant", ErrInvalid)
		}
	}
	return nil
}
