package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/cart"
	"github.com/sribagavath/sbb-server/internal/middleware"
	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
)

// CartHandler exposes the per-device book cart.  Carts are keyed by
// the device identity, not the account, so the cart a visitor filled
// before signing in survives the sign-in.
type CartHandler struct {
	Store cart.Store
	Books BookFinder
}

func NewCartHandler(store cart.Store, books BookFinder) *CartHandler {
	return &CartHandler{Store: store, Books: books}
}

type cartLine struct {
	Book     model.Book `json:"book"`
	Quantity int        `json:"quantity"`
	Subtotal int64      `json:"subtotal"`
}

type cartResp struct {
	Lines      []cartLine `json:"lines"`
	TotalItems int        `json:"total_items"`
	Total      int64      `json:"total"`
}

// Get returns the cart priced against the current catalog.  Lines
// whose book has been removed from the catalog are dropped.
func (h *CartHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ct := cart.Load(ctx, h.Store, middleware.DeviceID(c))
	resp, err := h.price(ctx, ct)
	if err != nil {
		return serverError(c, "load cart failed")
	}
	return c.JSON(http.StatusOK, resp)
}

type cartItemReq struct {
	BookID uint64 `json:"book_id"`
}

// AddItem increments the quantity of a book by one.
func (h *CartHandler) AddItem(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil || req.BookID == 0 {
		return badRequest(c, "book_id required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Books.GetByID(ctx, req.BookID); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "book not found")
		}
		return serverError(c, "add to cart failed")
	}

	ct := cart.Load(ctx, h.Store, middleware.DeviceID(c))
	ct.Add(ctx, req.BookID)

	resp, err := h.price(ctx, ct)
	if err != nil {
		return serverError(c, "add to cart failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// RemoveItem decrements the quantity of a book by one; the line
// disappears when it reaches zero.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid book id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ct := cart.Load(ctx, h.Store, middleware.DeviceID(c))
	ct.Remove(ctx, id)

	resp, err := h.price(ctx, ct)
	if err != nil {
		return serverError(c, "update cart failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Clear empties the cart.
func (h *CartHandler) Clear(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ct := cart.Load(ctx, h.Store, middleware.DeviceID(c))
	ct.Clear(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) price(ctx context.Context, ct *cart.Cart) (cartResp, error) {
	items := ct.Items()
	ids := make([]uint64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	books, err := h.Books.GetByIDs(ctx, ids)
	if err != nil {
		return cartResp{}, err
	}

	resp := cartResp{Lines: []cartLine{}}
	for id, qty := range items {
		book, ok := books[id]
		if !ok {
			continue // removed from the catalog since it was added
		}
		sub := book.Price * int64(qty)
		resp.Lines = append(resp.Lines, cartLine{Book: book, Quantity: qty, Subtotal: sub})
		resp.TotalItems += qty
		resp.Total += sub
	}
	return resp, nil
}
