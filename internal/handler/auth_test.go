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

	"github.com/sribagavath/sbb-server/internal/config"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/utils"
)

type tokenRow struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

// fakeTokens mirrors the refresh_tokens table: rows keyed by hash,
// rotation retires the row it matched.
type fakeTokens struct {
	rows map[string]*tokenRow
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{rows: make(map[string]*tokenRow)}
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.rows[hash] = &tokenRow{userID: userID, exp: exp}
	return nil
}

func (f *fakeTokens) Rotate(_ context.Context, hash string) (uint64, error) {
	row, ok := f.rows[hash]
	if !ok || row.revoked || time.Now().UTC().After(row.exp) {
		return 0, repository.ErrNotFound
	}
	row.revoked = true
	return row.userID, nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	for _, row := range f.rows {
		if row.userID == userID {
			row.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) live() int {
	n := 0
	for _, row := range f.rows {
		if !row.revoked {
			n++
		}
	}
	return n
}

func testAuthHandler(tokens *fakeTokens) *AuthHandler {
	cfg := config.Config{JWTSecret: "auth-test-secret", AccessTTLMin: 5, RefreshTTLDays: 7, BcryptCost: 4}
	users := fakeUsers{byID: map[uint64]repository.User{
		7: {ID: 7, Email: "devotee@example.org"},
	}}
	return NewAuthHandler(cfg, users, tokens, nil)
}

func postRefresh(e *echo.Echo, token string) *httptest.ResponseRecorder {
	body := `{"refresh_token":"` + token + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRefreshRotatesToken(t *testing.T) {
	tokens := newFakeTokens()
	h := testAuthHandler(tokens)

	raw := "seed-refresh-token"
	require.NoError(t, tokens.StoreRefresh(context.Background(), 7,
		utils.HashRefreshRaw(raw), time.Now().UTC().Add(time.Hour)))

	e := echo.New()
	e.POST("/auth/refresh", h.Refresh)

	rec := postRefresh(e, raw)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		User struct {
			ID uint64 `json:"id"`
		} `json:"user"`
		Refresh struct {
			Token string `json:"token"`
		} `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.User.ID)
	assert.NotEqual(t, raw, resp.Refresh.Token)

	// The presented token is spent and exactly one live one replaced it.
	assert.Equal(t, 1, tokens.live())
	assert.True(t, tokens.rows[utils.HashRefreshRaw(raw)].revoked)

	// Replaying the old token is refused.
	rec = postRefresh(e, raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The replacement still works.
	rec = postRefresh(e, resp.Refresh.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshUnknownToken(t *testing.T) {
	h := testAuthHandler(newFakeTokens())

	e := echo.New()
	e.POST("/auth/refresh", h.Refresh)

	rec := postRefresh(e, "never-issued")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
