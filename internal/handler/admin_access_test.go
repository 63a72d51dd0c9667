package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
)

// fakeAdminStore keeps grants and requests in maps, mirroring the
// one-row-per-user upsert the real table enforces with its primary
// key.
type fakeAdminStore struct {
	grants   map[uint64]model.AdminGrant
	requests map[uint64]model.AdminRequest
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		grants:   make(map[uint64]model.AdminGrant),
		requests: make(map[uint64]model.AdminRequest),
	}
}

func (f *fakeAdminStore) IsAdmin(_ context.Context, uid uint64) (bool, error) {
	_, ok := f.grants[uid]
	return ok, nil
}

func (f *fakeAdminStore) HasRequest(_ context.Context, uid uint64) (bool, error) {
	_, ok := f.requests[uid]
	return ok, nil
}

func (f *fakeAdminStore) UpsertRequest(_ context.Context, uid uint64, email string) error {
	f.requests[uid] = model.AdminRequest{UserID: uid, Email: email, RequestedAt: time.Now().UTC()}
	return nil
}

func (f *fakeAdminStore) Approve(_ context.Context, uid uint64) error {
	req, ok := f.requests[uid]
	if !ok {
		return repository.ErrNotFound
	}
	f.grants[uid] = model.AdminGrant{UserID: uid, Email: req.Email, GrantedAt: time.Now().UTC()}
	delete(f.requests, uid)
	return nil
}

func (f *fakeAdminStore) Reject(_ context.Context, uid uint64) error {
	if _, ok := f.requests[uid]; !ok {
		return repository.ErrNotFound
	}
	delete(f.requests, uid)
	return nil
}

func (f *fakeAdminStore) Revoke(_ context.Context, uid uint64) error {
	if _, ok := f.grants[uid]; !ok {
		return repository.ErrNotFound
	}
	delete(f.grants, uid)
	return nil
}

func (f *fakeAdminStore) ListRequests(context.Context) ([]model.AdminRequest, error) {
	out := make([]model.AdminRequest, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAdminStore) ListGrants(context.Context) ([]model.AdminGrant, error) {
	out := make([]model.AdminGrant, 0, len(f.grants))
	for _, g := range f.grants {
		out = append(out, g)
	}
	return out, nil
}

// fakeUsers serves a fixed user set.
type fakeUsers struct {
	byID map[uint64]repository.User
}

func (f fakeUsers) Create(context.Context, string, string, int) (uint64, error) {
	return 0, repository.ErrEmailExists
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (repository.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id uint64) (repository.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func accessEcho(h *AdminAccessHandler, uid uint64) *echo.Echo {
	e := echo.New()
	mw := identity(uid, "dev-a")
	e.GET("/admin-access", h.Status, mw)
	e.POST("/admin-access/request", h.Request, mw)
	return e
}

func TestRequestAccessTwiceKeepsOneRequest(t *testing.T) {
	admins := newFakeAdminStore()
	users := fakeUsers{byID: map[uint64]repository.User{
		7: {ID: 7, Email: "devotee@example.org"},
	}}
	h := NewAdminAccessHandler(admins, users)
	e := accessEcho(h, 7)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin-access/request", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}

	require.Len(t, admins.requests, 1)
	assert.Equal(t, "devotee@example.org", admins.requests[7].Email)

	// Status reflects the single pending request.
	req := httptest.NewRequest(http.MethodGet, "/admin-access", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"admin":false,"pending":true}`, rec.Body.String())
}

func TestRequestAccessAlreadyAdmin(t *testing.T) {
	admins := newFakeAdminStore()
	admins.grants[7] = model.AdminGrant{UserID: 7, Email: "devotee@example.org"}
	users := fakeUsers{byID: map[uint64]repository.User{
		7: {ID: 7, Email: "devotee@example.org"},
	}}
	h := NewAdminAccessHandler(admins, users)
	e := accessEcho(h, 7)

	req := httptest.NewRequest(http.MethodPost, "/admin-access/request", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, admins.requests)
}
