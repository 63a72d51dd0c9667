package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	// UserIDKey is the context key under which JWTAuth and OptionalJWT
	// store the authenticated user's ID as a uint64.
	UserIDKey = "user_id"
	// DeviceIDKey is the context key holding the device identity set
	// by DeviceIdentity.
	DeviceIDKey = "device_id"
)

// JWTAuth validates a Bearer access token and stores the subject claim
// in the context under UserIDKey.  Requests without a valid token are
// rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := parseBearer(c, secret)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
			}
			c.Set(UserIDKey, uid)
			return next(c)
		}
	}
}

// OptionalJWT extracts the user ID when a valid Bearer token is
// present but lets anonymous requests through untouched.  Routes that
// serve both account and device owners (checkout, order history) use
// this so the same endpoint works before and after sign-in.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid, ok := parseBearer(c, secret); ok {
				c.Set(UserIDKey, uid)
			}
			return next(c)
		}
	}
}

// parseBearer validates the Authorization header and returns the
// subject claim.  Only HMAC-signed tokens are accepted.
func parseBearer(c echo.Context, secret string) (uint64, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return 0, false
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	// Numeric claims decode as float64.
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, false
	}
	return uint64(sub), true
}

// UserID returns the authenticated user ID from the context, or false
// when the request is anonymous.
func UserID(c echo.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey).(uint64)
	return v, ok && v != 0
}

// DeviceID returns the device identity set by DeviceIdentity.
func DeviceID(c echo.Context) string {
	v, _ := c.Get(DeviceIDKey).(string)
	return v
}
