package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sribagavath/sbb-server/internal/cart"
	"github.com/sribagavath/sbb-server/internal/middleware"
	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/service"
	"github.com/sribagavath/sbb-server/internal/stream"
)

// identity stamps a fixed user and device onto every request, standing
// in for the JWT and device middleware.
func identity(uid uint64, device string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid != 0 {
				c.Set(middleware.UserIDKey, uid)
			}
			c.Set(middleware.DeviceIDKey, device)
			return next(c)
		}
	}
}

// stubTxStore keeps created transactions in memory.  Only the methods
// checkout exercises do real work.
type stubTxStore struct {
	rows map[string]model.Transaction
}

func newStubTxStore() *stubTxStore {
	return &stubTxStore{rows: make(map[string]model.Transaction)}
}

func (s *stubTxStore) Create(_ context.Context, tx *model.Transaction) error {
	s.rows[tx.ID] = *tx
	return nil
}

func (s *stubTxStore) GetByID(_ context.Context, id string) (model.Transaction, error) {
	tx, ok := s.rows[id]
	if !ok {
		return model.Transaction{}, repository.ErrNotFound
	}
	return tx, nil
}

func (s *stubTxStore) ListAll(context.Context) ([]model.Transaction, error) { return nil, nil }
func (s *stubTxStore) ListByOwner(context.Context, model.Owner) ([]model.Transaction, error) {
	return nil, nil
}
func (s *stubTxStore) UpdateStatus(context.Context, string, model.Status, string) error { return nil }
func (s *stubTxStore) Delete(context.Context, string) error                             { return nil }
func (s *stubTxStore) ListIDsByStatus(context.Context, model.Status) ([]string, error) {
	return nil, nil
}
func (s *stubTxStore) HasForProgram(context.Context, uint64) (bool, error) { return false, nil }
func (s *stubTxStore) CopyToArchive(context.Context, model.Transaction, time.Time) error {
	return nil
}
func (s *stubTxStore) ListArchived(context.Context) ([]model.ArchivedTransaction, error) {
	return nil, nil
}
func (s *stubTxStore) GetArchived(context.Context, string) (model.ArchivedTransaction, error) {
	return model.ArchivedTransaction{}, repository.ErrNotFound
}

type stubReceiptStore struct{}

func (stubReceiptStore) Create(context.Context, model.ReceiptImage) error { return nil }
func (stubReceiptStore) Get(context.Context, string) (model.ReceiptImage, error) {
	return model.ReceiptImage{}, repository.ErrNotFound
}
func (stubReceiptStore) Delete(context.Context, string) error        { return nil }
func (stubReceiptStore) CopyToArchive(context.Context, string) error { return nil }
func (stubReceiptStore) GetArchived(context.Context, string) (model.ReceiptImage, error) {
	return model.ReceiptImage{}, repository.ErrNotFound
}

// fakeBooks serves a fixed catalog.
type fakeBooks struct {
	byID map[uint64]model.Book
}

func (f fakeBooks) GetByID(_ context.Context, id uint64) (model.Book, error) {
	b, ok := f.byID[id]
	if !ok {
		return model.Book{}, repository.ErrNotFound
	}
	return b, nil
}

func (f fakeBooks) GetByIDs(_ context.Context, ids []uint64) (map[uint64]model.Book, error) {
	out := make(map[uint64]model.Book, len(ids))
	for _, id := range ids {
		if b, ok := f.byID[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func TestPlaceOrderPricesAndClearsCart(t *testing.T) {
	books := fakeBooks{byID: map[uint64]model.Book{
		1: {ID: 1, Title: "Gita", Price: 100},
		2: {ID: 2, Title: "Upanishads", Price: 250},
	}}
	store := cart.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "dev-1", map[uint64]int{1: 2, 2: 1}))

	txs := newStubTxStore()
	svc := service.NewTransactionService(txs, stubReceiptStore{}, nil, stream.NewHub(), nil)
	h := NewCheckoutHandler(svc, books, nil, store, nil)

	e := echo.New()
	e.POST("/orders", h.PlaceOrder, identity(0, "dev-1"))

	body := `{"shipping":{"name":"Ravi","mobile":"9000000000","address":"12 Temple St","city":"Salem","pincode":"636001"}}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tx model.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, model.ItemBookOrder, tx.ItemType)
	assert.Equal(t, int64(450), tx.Amount)
	assert.Equal(t, "Order: Gita x2, Upanishads x1", tx.ItemName)
	assert.Equal(t, "dev-1", tx.Owner.DeviceID)

	// Recorded, not just echoed.
	_, err := txs.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)

	// The cart is empty once the order is safely down.
	items, err := store.Load(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	txs := newStubTxStore()
	svc := service.NewTransactionService(txs, stubReceiptStore{}, nil, stream.NewHub(), nil)
	h := NewCheckoutHandler(svc, fakeBooks{}, nil, cart.NewMemoryStore(), nil)

	e := echo.New()
	e.POST("/orders", h.PlaceOrder, identity(0, "dev-2"))

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"shipping":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, txs.rows)
}
