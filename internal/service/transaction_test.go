package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/stream"
)

// fakeTxStore keeps transactions in maps and mimics the repository's
// sentinel errors.
type fakeTxStore struct {
	mu       sync.Mutex
	rows     map[string]model.Transaction
	archived map[string]model.ArchivedTransaction
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{
		rows:     map[string]model.Transaction{},
		archived: map[string]model.ArchivedTransaction{},
	}
}

func (f *fakeTxStore) Create(_ context.Context, tx *model.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.CreatedAt = time.Now().UTC()
	tx.UpdatedAt = tx.CreatedAt
	f.rows[tx.ID] = *tx
	return nil
}

func (f *fakeTxStore) GetByID(_ context.Context, id string) (model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.rows[id]
	if !ok {
		return model.Transaction{}, repository.ErrNotFound
	}
	return tx, nil
}

func (f *fakeTxStore) ListAll(_ context.Context) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Transaction, 0, len(f.rows))
	for _, tx := range f.rows {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTxStore) ListByOwner(_ context.Context, owner model.Owner) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Transaction
	for _, tx := range f.rows {
		if tx.Owner == owner {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTxStore) UpdateStatus(_ context.Context, id string, status model.Status, comments string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	tx.Status = status
	tx.Comments = comments
	f.rows[id] = tx
	return nil
}

func (f *fakeTxStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeTxStore) ListIDsByStatus(_ context.Context, status model.Status) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, tx := range f.rows {
		if tx.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeTxStore) HasForProgram(_ context.Context, programID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.rows {
		if tx.Registration != nil && tx.Registration.ProgramID == programID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTxStore) CopyToArchive(_ context.Context, tx model.Transaction, archivedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.archived[tx.ID]; ok {
		// idempotent: the first archive timestamp wins
		return nil
	}
	f.archived[tx.ID] = model.ArchivedTransaction{Transaction: tx, ArchivedAt: archivedAt}
	return nil
}

func (f *fakeTxStore) ListArchived(_ context.Context) ([]model.ArchivedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ArchivedTransaction, 0, len(f.archived))
	for _, tx := range f.archived {
		out = append(out, tx)
	}
	return out, nil
}

func (f *fakeTxStore) GetArchived(_ context.Context, id string) (model.ArchivedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.archived[id]
	if !ok {
		return model.ArchivedTransaction{}, repository.ErrNotFound
	}
	return tx, nil
}

type fakeReceiptStore struct {
	mu       sync.Mutex
	rows     map[string]model.ReceiptImage
	archived map[string]model.ReceiptImage
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{rows: map[string]model.ReceiptImage{}, archived: map[string]model.ReceiptImage{}}
}

func (f *fakeReceiptStore) Create(_ context.Context, img model.ReceiptImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[img.TransactionID] = img
	return nil
}

func (f *fakeReceiptStore) Get(_ context.Context, txID string) (model.ReceiptImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.rows[txID]
	if !ok {
		return model.ReceiptImage{}, repository.ErrNotFound
	}
	return img, nil
}

func (f *fakeReceiptStore) Delete(_ context.Context, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, txID)
	return nil
}

func (f *fakeReceiptStore) CopyToArchive(_ context.Context, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.rows[txID]
	if !ok {
		return repository.ErrNotFound
	}
	f.archived[txID] = img
	return nil
}

func (f *fakeReceiptStore) GetArchived(_ context.Context, txID string) (model.ReceiptImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.archived[txID]
	if !ok {
		return model.ReceiptImage{}, repository.ErrNotFound
	}
	return img, nil
}

// fakeStatsStore accumulates deltas into a totals struct.
type fakeStatsStore struct {
	mu     sync.Mutex
	totals model.StatsTotals
	daily  map[string]int64
	geo    map[string]map[string]int64
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{daily: map[string]int64{}, geo: map[string]map[string]int64{}}
}

func (f *fakeStatsStore) Increment(_ context.Context, d model.StatsDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals.Programs += d.Programs
	f.totals.Participants += d.Participants
	f.totals.BookOrders += d.BookOrders
	f.totals.BookRevenue += d.BookRevenue
	f.totals.Donations += d.Donations
	f.totals.DonationAmount += d.DonationAmount
	f.totals.Receipts += d.Receipts
	f.totals.ImageBytes += d.ImageBytes
	f.totals.Logins += d.Logins
	return nil
}

func (f *fakeStatsStore) Get(_ context.Context) (model.StatsTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals, nil
}

func (f *fakeStatsStore) Replace(_ context.Context, t model.StatsTotals) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.Logins = f.totals.Logins
	f.totals = t
	return nil
}

func (f *fakeStatsStore) Scan(_ context.Context) (model.StatsTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals, nil
}

func (f *fakeStatsStore) IncrementDailyLogin(_ context.Context, day string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daily[day]++
	f.totals.Logins++
	return nil
}

func (f *fakeStatsStore) IncrementGeoLogin(_ context.Context, month, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.geo[month] == nil {
		f.geo[month] = map[string]int64{}
	}
	f.geo[month][location]++
	return nil
}

func (f *fakeStatsStore) GeoLogins(_ context.Context, month string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.geo[month], nil
}

// newTestService wires a service whose side effects run inline so
// assertions see them immediately.
func newTestService(t *testing.T) (*TransactionService, *fakeTxStore, *fakeReceiptStore, *fakeStatsStore) {
	t.Helper()
	txs := newFakeTxStore()
	receipts := newFakeReceiptStore()
	statsStore := newFakeStatsStore()
	stats := NewStatsService(statsStore, nil, "")
	svc := NewTransactionService(txs, receipts, stats, stream.NewHub(), nil)
	svc.dispatch = func(fn func()) { fn() }
	return svc, txs, receipts, statsStore
}

func donationDraft(amount int64) model.Transaction {
	return model.Transaction{
		ItemType: model.ItemDonation,
		ItemName: "General Donation",
		Amount:   amount,
		Donor:    &model.DonorDetails{Name: "Asha", Mobile: "9876543210"},
		Owner:    model.Owner{DeviceID: "dev-1"},
	}
}

func TestRecordDonation(t *testing.T) {
	svc, txs, _, statsStore := newTestService(t)

	tx, err := svc.Record(context.Background(), donationDraft(500), "")
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.False(t, tx.HasImage)

	stored, err := txs.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), stored.Amount)

	totals, _ := statsStore.Get(context.Background())
	assert.Equal(t, int64(1), totals.Donations)
	assert.Equal(t, int64(500), totals.DonationAmount)
}

func TestRecordDonationRequiresDonor(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	draft := donationDraft(500)
	draft.Donor = nil
	_, err := svc.Record(context.Background(), draft, "")
	assert.ErrorIs(t, err, ErrInvalid)

	draft = donationDraft(0)
	_, err = svc.Record(context.Background(), draft, "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRecordBookOrderValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	draft := NewBookOrderDraft([]model.OrderItem{
		{ProductID: 1, Title: "Gita", Quantity: 2, UnitPrice: 100},
	}, model.ShippingDetails{Name: "Ravi", Mobile: "9000000000", Address: "12 Main St", City: "Chennai"})
	draft.Owner = model.Owner{UserID: 7}

	// pincode missing
	_, err := svc.Record(context.Background(), draft, "")
	assert.ErrorIs(t, err, ErrInvalid)

	draft.Order.Shipping.Pincode = "600001"
	tx, err := svc.Record(context.Background(), draft, "")
	require.NoError(t, err)
	assert.Equal(t, int64(200), tx.Amount)
}

func TestCheckoutTotals(t *testing.T) {
	draft := NewBookOrderDraft([]model.OrderItem{
		{ProductID: 1, Title: "Gita", Quantity: 2, UnitPrice: 100},
		{ProductID: 2, Title: "Upanishads", Quantity: 1, UnitPrice: 250},
	}, model.ShippingDetails{Name: "Ravi", Mobile: "9000000000", Address: "12 Main St", City: "Chennai", Pincode: "600001"})

	assert.Equal(t, int64(450), draft.Amount)
	assert.Equal(t, "Order: Gita x2, Upanishads x1", draft.ItemName)
	assert.Equal(t, model.ItemBookOrder, draft.ItemType)
}

func TestRecordWithReceiptImage(t *testing.T) {
	svc, _, receipts, statsStore := newTestService(t)

	img := "aGVsbG8gd29ybGQh" // 16 base64 chars, 12 decoded bytes
	tx, err := svc.Record(context.Background(), donationDraft(100), img)
	require.NoError(t, err)
	assert.True(t, tx.HasImage)

	stored, err := receipts.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, img, stored.Base64)
	assert.Equal(t, tx.Owner, stored.Owner)

	totals, _ := statsStore.Get(context.Background())
	assert.Equal(t, int64(1), totals.Receipts)
	assert.Equal(t, int64(12), totals.ImageBytes)
}

// brokenReceiptStore rejects every image write.
type brokenReceiptStore struct {
	*fakeReceiptStore
}

func (b *brokenReceiptStore) Create(context.Context, model.ReceiptImage) error {
	return errImageStore
}

var errImageStore = errors.New("image store down")

func TestRecordKeepsOrderWhenReceiptWriteFails(t *testing.T) {
	txs := newFakeTxStore()
	receipts := &brokenReceiptStore{newFakeReceiptStore()}
	statsStore := newFakeStatsStore()
	stats := NewStatsService(statsStore, nil, "")
	svc := NewTransactionService(txs, receipts, stats, stream.NewHub(), nil)
	svc.dispatch = func(fn func()) { fn() }

	tx, err := svc.Record(context.Background(), donationDraft(300), "aW1n")
	require.NoError(t, err)
	assert.False(t, tx.HasImage)

	// The order of record survived the image failure.
	stored, err := txs.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), stored.Amount)

	// The lost receipt is not counted.
	totals, _ := statsStore.Get(context.Background())
	assert.Equal(t, int64(1), totals.Donations)
	assert.Zero(t, totals.Receipts)
	assert.Zero(t, totals.ImageBytes)
}

func TestDeleteReversesStats(t *testing.T) {
	svc, txs, receipts, statsStore := newTestService(t)

	tx, err := svc.Record(context.Background(), donationDraft(300), "aGVsbG8gd29ybGQh")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), tx.ID))

	_, err = txs.GetByID(context.Background(), tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = receipts.Get(context.Background(), tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	totals, _ := statsStore.Get(context.Background())
	assert.Equal(t, model.StatsTotals{}, totals)
}

func TestUpdateStatusEnforcesWorkflow(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	tx, err := svc.Record(context.Background(), donationDraft(100), "")
	require.NoError(t, err)

	// donations never ship
	_, err = svc.UpdateStatus(context.Background(), tx.ID, model.StatusShipped, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	updated, err := svc.UpdateStatus(context.Background(), tx.ID, model.StatusProcessing, "verified")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, updated.Status)
	assert.Equal(t, "verified", updated.Comments)

	updated, err = svc.UpdateStatus(context.Background(), tx.ID, model.StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)

	// reversals step back one stage at most
	_, err = svc.UpdateStatus(context.Background(), tx.ID, model.StatusPending, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUpdateStatusClearsStaleComments(t *testing.T) {
	svc, txs, _, _ := newTestService(t)

	tx, err := svc.Record(context.Background(), donationDraft(100), "")
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), tx.ID, model.StatusProcessing, "marked in error")
	require.NoError(t, err)
	assert.Equal(t, "marked in error", updated.Comments)

	// A transition without a note wipes the previous one.
	updated, err = svc.UpdateStatus(context.Background(), tx.ID, model.StatusPending, "")
	require.NoError(t, err)
	assert.Empty(t, updated.Comments)

	stored, err := txs.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Comments)
}

func TestArchiveMovesRowAndImage(t *testing.T) {
	svc, txs, receipts, statsStore := newTestService(t)

	tx, err := svc.Record(context.Background(), donationDraft(100), "aW1n")
	require.NoError(t, err)
	before, _ := statsStore.Get(context.Background())

	require.NoError(t, svc.Archive(context.Background(), tx.ID))

	_, err = txs.GetByID(context.Background(), tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	arch, err := txs.GetArchived(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, arch.ID)
	assert.False(t, arch.ArchivedAt.IsZero())

	_, err = receipts.GetArchived(context.Background(), tx.ID)
	require.NoError(t, err)
	_, err = receipts.Get(context.Background(), tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// archiving keeps the totals untouched
	after, _ := statsStore.Get(context.Background())
	assert.Equal(t, before, after)

	// receipt fetch falls through to the archive
	img, err := svc.Receipt(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "aW1n", img.Base64)
}

func TestArchiveResumesAfterInterruption(t *testing.T) {
	svc, txs, _, _ := newTestService(t)

	tx, err := svc.Record(context.Background(), donationDraft(200), "")
	require.NoError(t, err)

	// Simulate a run that copied the row but died before the delete.
	firstStamp := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, txs.CopyToArchive(context.Background(), tx, firstStamp))

	// Mid-flight the record exists in both places, never in neither.
	_, err = txs.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	_, err = txs.GetArchived(context.Background(), tx.ID)
	require.NoError(t, err)

	// Retrying completes the move and keeps the original archive stamp.
	require.NoError(t, svc.Archive(context.Background(), tx.ID))
	_, err = txs.GetByID(context.Background(), tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	arch, err := txs.GetArchived(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, firstStamp, arch.ArchivedAt)
}

func TestArchiveAllCompleted(t *testing.T) {
	svc, txs, _, _ := newTestService(t)

	var done []string
	for i := 0; i < 3; i++ {
		tx, err := svc.Record(context.Background(), donationDraft(50), "")
		require.NoError(t, err)
		_, err = svc.UpdateStatus(context.Background(), tx.ID, model.StatusProcessing, "")
		require.NoError(t, err)
		_, err = svc.UpdateStatus(context.Background(), tx.ID, model.StatusCompleted, "")
		require.NoError(t, err)
		done = append(done, tx.ID)
	}
	pending, err := svc.Record(context.Background(), donationDraft(75), "")
	require.NoError(t, err)

	moved, err := svc.ArchiveAllCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	for _, id := range done {
		_, err := txs.GetArchived(context.Background(), id)
		assert.NoError(t, err)
	}
	// the pending one stays live
	_, err = txs.GetByID(context.Background(), pending.ID)
	assert.NoError(t, err)
}

func TestRecalculatePreservesLogins(t *testing.T) {
	statsStore := newFakeStatsStore()
	stats := NewStatsService(statsStore, nil, "")

	require.NoError(t, statsStore.IncrementDailyLogin(context.Background(), "2026-08-28"))
	require.NoError(t, statsStore.Increment(context.Background(), model.StatsDelta{Donations: 2, DonationAmount: 700}))

	totals, err := stats.Recalculate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Logins)
	assert.Equal(t, int64(2), totals.Donations)
}
