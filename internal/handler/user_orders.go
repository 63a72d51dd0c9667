package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/service"
	"github.com/sribagavath/sbb-server/internal/stream"
)

// UserOrdersHandler serves an owner's own transaction history, both as
// a plain list and as a live Server-Sent Events stream that pushes a
// fresh snapshot whenever one of the owner's orders changes.
type UserOrdersHandler struct {
	Repo *repository.TransactionRepo
	Txs  *service.TransactionService
	Hub  *stream.Hub
}

func NewUserOrdersHandler(repo *repository.TransactionRepo, txs *service.TransactionService, hub *stream.Hub) *UserOrdersHandler {
	return &UserOrdersHandler{Repo: repo, Txs: txs, Hub: hub}
}

// List returns the owner's transactions, newest first.
func (h *UserOrdersHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	txs, err := h.Repo.ListByOwner(ctx, currentOwner(c))
	if err != nil {
		return serverError(c, "list orders failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": txs})
}

// Get returns one of the owner's transactions.  Other owners' IDs
// yield 404, not 403, so the endpoint doesn't confirm they exist.
func (h *UserOrdersHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Repo.GetByID(ctx, c.Param("id"))
	if err == repository.ErrNotFound || (err == nil && tx.Owner != currentOwner(c)) {
		return notFound(c, "order not found")
	}
	if err != nil {
		return serverError(c, "get order failed")
	}
	return c.JSON(http.StatusOK, tx)
}

// Receipt returns the receipt image for one of the owner's orders.
func (h *UserOrdersHandler) Receipt(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	tx, err := h.Repo.GetByID(ctx, id)
	if err == repository.ErrNotFound || (err == nil && tx.Owner != currentOwner(c)) {
		return notFound(c, "order not found")
	}
	if err != nil {
		return serverError(c, "get order failed")
	}

	img, err := h.Txs.Receipt(ctx, id)
	if err != nil {
		return notFound(c, "no receipt for this order")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "base64": img.Base64})
}

// Stream pushes the owner's order list over SSE.  A snapshot goes out
// immediately, then again every time one of the owner's orders is
// created, updated, deleted or archived.  A periodic keepalive comment
// holds idle proxies open.
func (h *UserOrdersHandler) Stream(c echo.Context) error {
	owner := currentOwner(c)
	sub := h.Hub.Subscribe(stream.OwnedBy(owner))
	defer sub.Close()

	return h.serveSSE(c, func(ctx context.Context) (any, error) {
		txs, err := h.Repo.ListByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}
		return echo.Map{"orders": txs}, nil
	}, sub)
}

// serveSSE runs the send loop shared by the user and admin streams.
func (h *UserOrdersHandler) serveSSE(c echo.Context, snapshot func(context.Context) (any, error), sub *stream.Subscription) error {
	return serveSnapshotStream(c, snapshot, sub.C)
}

// serveSnapshotStream writes an SSE stream of JSON snapshots: one up
// front, one per tick on notify, and a comment line every 25 seconds
// as a keepalive.
func serveSnapshotStream(c echo.Context, snapshot func(context.Context) (any, error), notify <-chan struct{}) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	send := func() error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		payload, err := snapshot(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(res, "data: %s\n\n", raw); err != nil {
			return err
		}
		res.Flush()
		return nil
	}

	if err := send(); err != nil {
		return err
	}

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-notify:
			if err := send(); err != nil {
				return nil
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(res, ": keepalive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// anyOrder matches every transaction; used by the admin stream.
func anyOrder(model.Transaction) bool { return true }
