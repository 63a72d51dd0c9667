package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/middleware"
	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
)

// AdminStore is the grant/request persistence behind the admin gate.
type AdminStore interface {
	IsAdmin(ctx context.Context, userID uint64) (bool, error)
	HasRequest(ctx context.Context, userID uint64) (bool, error)
	UpsertRequest(ctx context.Context, userID uint64, email string) error
	Approve(ctx context.Context, userID uint64) error
	Reject(ctx context.Context, userID uint64) error
	Revoke(ctx context.Context, userID uint64) error
	ListRequests(ctx context.Context) ([]model.AdminRequest, error)
	ListGrants(ctx context.Context) ([]model.AdminGrant, error)
}

// AdminAccessHandler manages the admin gate: any signed-in user can
// request access, an existing admin approves or rejects, and grants
// can be revoked later.  Grants and requests are disjoint; approval
// moves the row from one table to the other.
type AdminAccessHandler struct {
	Admins AdminStore
	Users  UserStore
}

func NewAdminAccessHandler(a AdminStore, u UserStore) *AdminAccessHandler {
	return &AdminAccessHandler{Admins: a, Users: u}
}

// Status tells the signed-in user where they stand: admin, pending, or
// neither.
func (h *AdminAccessHandler) Status(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	isAdmin, err := h.Admins.IsAdmin(ctx, uid)
	if err != nil {
		return serverError(c, "status check failed")
	}
	pending := false
	if !isAdmin {
		if pending, err = h.Admins.HasRequest(ctx, uid); err != nil {
			return serverError(c, "status check failed")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"admin": isAdmin, "pending": pending})
}

// Request files (or refreshes) the signed-in user's request for admin
// access.  Requesting twice is not an error; the row is overwritten.
func (h *AdminAccessHandler) Request(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	isAdmin, err := h.Admins.IsAdmin(ctx, uid)
	if err != nil {
		return serverError(c, "request failed")
	}
	if isAdmin {
		return c.JSON(http.StatusConflict, echo.Map{"error": "already an admin"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return serverError(c, "request failed")
	}
	if err := h.Admins.UpsertRequest(ctx, uid, u.Email); err != nil {
		return serverError(c, "request failed")
	}
	return c.JSON(http.StatusAccepted, echo.Map{"pending": true})
}

// ListRequests returns the pending requests for the approval screen.
func (h *AdminAccessHandler) ListRequests(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	reqs, err := h.Admins.ListRequests(ctx)
	if err != nil {
		return serverError(c, "list requests failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": reqs})
}

// Approve grants admin access and removes the request in one step.
func (h *AdminAccessHandler) Approve(c echo.Context) error {
	uid, err := pathID(c, "uid")
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Admins.Approve(ctx, uid); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "no pending request for this user")
		}
		return serverError(c, "approve failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"approved": uid})
}

// Reject discards a pending request without granting anything.
func (h *AdminAccessHandler) Reject(c echo.Context) error {
	uid, err := pathID(c, "uid")
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Admins.Reject(ctx, uid); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "no pending request for this user")
		}
		return serverError(c, "reject failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Revoke removes an existing grant.  Admins cannot revoke themselves;
// the last grant standing would otherwise lock everyone out.
func (h *AdminAccessHandler) Revoke(c echo.Context) error {
	uid, err := pathID(c, "uid")
	if err != nil {
		return badRequest(c, "invalid user id")
	}
	if self, ok := middleware.UserID(c); ok && self == uid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot revoke your own access"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Admins.Revoke(ctx, uid); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "no grant for this user")
		}
		return serverError(c, "revoke failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListGrants returns the current administrators.
func (h *AdminAccessHandler) ListGrants(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	grants, err := h.Admins.ListGrants(ctx)
	if err != nil {
		return serverError(c, "list grants failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"grants": grants})
}
