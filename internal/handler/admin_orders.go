package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/service"
	"github.com/sribagavath/sbb-server/internal/stream"
	"github.com/sribagavath/sbb-server/internal/workflow"
)

// AdminOrdersHandler is the fulfilment console: every transaction
// grouped into workflow buckets, status transitions, deletion,
// archiving and receipt inspection.
type AdminOrdersHandler struct {
	Repo *repository.TransactionRepo
	Txs  *service.TransactionService
	Hub  *stream.Hub
}

func NewAdminOrdersHandler(repo *repository.TransactionRepo, txs *service.TransactionService, hub *stream.Hub) *AdminOrdersHandler {
	return &AdminOrdersHandler{Repo: repo, Txs: txs, Hub: hub}
}

// bucketed groups transactions under the admin view's tabs.  Unknown
// statuses land in PENDING so a bad row is seen, not lost.
func bucketed(txs []model.Transaction) map[workflow.Bucket][]model.Transaction {
	out := map[workflow.Bucket][]model.Transaction{
		workflow.BucketPending:    {},
		workflow.BucketProcessing: {},
		workflow.BucketShipped:    {},
		workflow.BucketCompleted:  {},
		workflow.BucketRejected:   {},
	}
	for _, tx := range txs {
		b := workflow.Classify(tx.Status)
		out[b] = append(out[b], tx)
	}
	return out
}

// List returns every live transaction grouped by bucket.
func (h *AdminOrdersHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	txs, err := h.Repo.ListAll(ctx)
	if err != nil {
		return serverError(c, "list orders failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"buckets": bucketed(txs)})
}

// Stream pushes the bucketed view over SSE whenever any transaction
// changes.
func (h *AdminOrdersHandler) Stream(c echo.Context) error {
	sub := h.Hub.Subscribe(anyOrder)
	defer sub.Close()

	return serveSnapshotStream(c, func(ctx context.Context) (any, error) {
		txs, err := h.Repo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return echo.Map{"buckets": bucketed(txs)}, nil
	}, sub.C)
}

// Get returns any transaction by ID.
func (h *AdminOrdersHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Repo.GetByID(ctx, c.Param("id"))
	if err == repository.ErrNotFound {
		return notFound(c, "order not found")
	}
	if err != nil {
		return serverError(c, "get order failed")
	}
	return c.JSON(http.StatusOK, tx)
}

type statusReq struct {
	Status   model.Status `json:"status"`
	Comments string       `json:"comments,omitempty"`
}

// UpdateStatus moves a transaction along its workflow.  Steps can't be
// skipped and rejected orders stay rejected, whatever the client sends.
func (h *AdminOrdersHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return badRequest(c, "status required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Txs.UpdateStatus(ctx, c.Param("id"), req.Status, req.Comments)
	if err != nil {
		if errors.Is(err, service.ErrIllegalTransition) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		}
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "order not found")
		}
		return serverError(c, "update status failed")
	}
	return c.JSON(http.StatusOK, tx)
}

// Delete permanently removes a transaction and its receipt and unwinds
// its contribution to the stats.
func (h *AdminOrdersHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Txs.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "order not found")
		}
		return serverError(c, "delete order failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Archive moves a transaction into long-term storage.
func (h *AdminOrdersHandler) Archive(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Txs.Archive(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "order not found")
		}
		return serverError(c, "archive order failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ArchiveCompleted archives every COMPLETED transaction in one sweep.
func (h *AdminOrdersHandler) ArchiveCompleted(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	moved, err := h.Txs.ArchiveAllCompleted(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "some orders failed to archive", "archived": moved})
	}
	return c.JSON(http.StatusOK, echo.Map{"archived": moved})
}

// DeleteCompleted permanently deletes every COMPLETED transaction.
func (h *AdminOrdersHandler) DeleteCompleted(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	removed, err := h.Txs.DeleteAllCompleted(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "some orders failed to delete", "deleted": removed})
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": removed})
}

// Receipt returns the receipt image for any transaction, live or
// archived.
func (h *AdminOrdersHandler) Receipt(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	img, err := h.Txs.Receipt(ctx, id)
	if err != nil {
		return notFound(c, "no receipt for this order")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "base64": img.Base64})
}

// ListArchived returns the archived transactions, newest first.
func (h *AdminOrdersHandler) ListArchived(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	txs, err := h.Repo.ListArchived(ctx)
	if err != nil {
		return serverError(c, "list archived failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": txs})
}

// GetArchived returns a single archived transaction.
func (h *AdminOrdersHandler) GetArchived(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Repo.GetArchived(ctx, c.Param("id"))
	if err == repository.ErrNotFound {
		return notFound(c, "archived order not found")
	}
	if err != nil {
		return serverError(c, "get archived failed")
	}
	return c.JSON(http.StatusOK, tx)
}
