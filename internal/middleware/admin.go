package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// AdminChecker answers whether a user holds an admin grant or has a
// request awaiting approval.  *repository.AdminRepo satisfies it.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uint64) (bool, error)
	HasRequest(ctx context.Context, userID uint64) (bool, error)
}

// RequireAdmin gates a route on an admin grant looked up per request.
// Grants live in the database rather than the token, so a revocation
// takes effect immediately instead of at token expiry.  Users with a
// pending request get a distinct message so the client can show the
// waiting state.
func RequireAdmin(checker AdminChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			isAdmin, err := checker.IsAdmin(ctx, uid)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not verify access"})
			}
			if isAdmin {
				return next(c)
			}

			pending, err := checker.HasRequest(ctx, uid)
			if err == nil && pending {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin request pending approval"})
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
		}
	}
}
