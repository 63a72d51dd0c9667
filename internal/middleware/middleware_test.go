package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sribagavath/sbb-server/internal/utils"
)

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func protectedEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/p", func(c echo.Context) error {
		uid, _ := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"uid": uid})
	}, mw...)
	return e
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken("s", 7, 15)
	require.NoError(t, err)

	e := protectedEcho(JWTAuth("s"))
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)

	rec := do(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":7`)
}

func TestJWTAuthRejectsMissingOrBadToken(t *testing.T) {
	e := protectedEcho(JWTAuth("s"))

	rec := do(e, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = do(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalJWTLetsAnonymousThrough(t *testing.T) {
	e := protectedEcho(OptionalJWT("s"))

	rec := do(e, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":0`)
}

func TestDeviceIdentityMintsAndEchoes(t *testing.T) {
	e := echo.New()
	e.Use(DeviceIdentity())
	e.GET("/d", func(c echo.Context) error {
		return c.String(http.StatusOK, DeviceID(c))
	})

	// no header: a fresh ID is minted and echoed back
	rec := do(e, httptest.NewRequest(http.MethodGet, "/d", nil))
	minted := rec.Header().Get(DeviceHeader)
	assert.NotEmpty(t, minted)
	assert.Equal(t, minted, rec.Body.String())

	// existing header is kept
	req := httptest.NewRequest(http.MethodGet, "/d", nil)
	req.Header.Set(DeviceHeader, "device-abc")
	rec = do(e, req)
	assert.Equal(t, "device-abc", rec.Body.String())
}

type fakeChecker struct {
	admins  map[uint64]bool
	pending map[uint64]bool
}

func (f fakeChecker) IsAdmin(_ context.Context, uid uint64) (bool, error) {
	return f.admins[uid], nil
}
func (f fakeChecker) HasRequest(_ context.Context, uid uint64) (bool, error) {
	return f.pending[uid], nil
}

func adminEcho(secret string, checker AdminChecker) *echo.Echo {
	e := echo.New()
	e.GET("/a", func(c echo.Context) error {
		return c.String(http.StatusOK, "in")
	}, JWTAuth(secret), RequireAdmin(checker))
	return e
}

func TestRequireAdmin(t *testing.T) {
	checker := fakeChecker{
		admins:  map[uint64]bool{1: true},
		pending: map[uint64]bool{2: true},
	}
	e := adminEcho("s", checker)

	request := func(uid uint64) *httptest.ResponseRecorder {
		tok, err := utils.NewAccessToken("s", uid, 15)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/a", nil)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
		return do(e, req)
	}

	assert.Equal(t, http.StatusOK, request(1).Code)

	pending := request(2)
	assert.Equal(t, http.StatusForbidden, pending.Code)
	assert.Contains(t, pending.Body.String(), "pending")

	denied := request(3)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Contains(t, denied.Body.String(), "admin access required")

	// no token at all
	rec := do(e, httptest.NewRequest(http.MethodGet, "/a", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
