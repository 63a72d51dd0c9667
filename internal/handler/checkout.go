package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sribagavath/sbb-server/internal/cart"
	"github.com/sribagavath/sbb-server/internal/middleware"
	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/service"
)

// maxImageBase64 caps uploaded receipt images at roughly 3 MB decoded.
const maxImageBase64 = 4 << 20

const shippingTTL = 180 * 24 * time.Hour

// BookFinder resolves catalog books for pricing.
type BookFinder interface {
	GetByID(ctx context.Context, id uint64) (model.Book, error)
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Book, error)
}

// ProgramFinder resolves the program a registration snapshots.
type ProgramFinder interface {
	GetByID(ctx context.Context, id uint64) (model.Program, error)
}

// CheckoutHandler records the three kinds of transactions: book orders
// priced from the cart, donations and program registrations.  It also
// remembers the last shipping details per owner so returning buyers
// don't retype their address.
type CheckoutHandler struct {
	Txs       *service.TransactionService
	Books     BookFinder
	Programs  ProgramFinder
	CartStore cart.Store
	Redis     *redis.Client // nil disables saved shipping details
}

func NewCheckoutHandler(txs *service.TransactionService, books BookFinder, programs ProgramFinder, cartStore cart.Store, rdb *redis.Client) *CheckoutHandler {
	return &CheckoutHandler{Txs: txs, Books: books, Programs: programs, CartStore: cartStore, Redis: rdb}
}

type orderReq struct {
	Shipping    model.ShippingDetails `json:"shipping"`
	ImageBase64 string                `json:"image_base64,omitempty"`
}

// PlaceOrder turns the device's cart into a BOOK_ORDER transaction.
// Prices come from the catalog at checkout time, not from the client.
// The cart is cleared only after the order is safely recorded.
func (h *CheckoutHandler) PlaceOrder(c echo.Context) error {
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.ImageBase64) > maxImageBase64 {
		return badRequest(c, "receipt image too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ct := cart.Load(ctx, h.CartStore, middleware.DeviceID(c))
	items := ct.Items()
	if len(items) == 0 {
		return badRequest(c, "cart is empty")
	}

	ids := make([]uint64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	books, err := h.Books.GetByIDs(ctx, ids)
	if err != nil {
		return serverError(c, "price cart failed")
	}

	lines := make([]model.OrderItem, 0, len(ids))
	for _, id := range ids {
		book, ok := books[id]
		if !ok {
			return badRequest(c, fmt.Sprintf("book %d is no longer available", id))
		}
		lines = append(lines, model.OrderItem{
			ProductID: book.ID,
			Title:     book.Title,
			Quantity:  items[id],
			UnitPrice: book.Price,
		})
	}

	draft := service.NewBookOrderDraft(lines, req.Shipping)
	draft.Owner = currentOwner(c)

	tx, err := h.Txs.Record(ctx, draft, req.ImageBase64)
	if err != nil {
		if errors.Is(err, service.ErrInvalid) {
			return badRequest(c, err.Error())
		}
		return serverError(c, "record order failed")
	}

	ct.Clear(ctx)
	h.saveShipping(ctx, draft.Owner, req.Shipping)
	return c.JSON(http.StatusCreated, tx)
}

type donationReq struct {
	Amount      int64  `json:"amount"`
	Name        string `json:"name"`
	Mobile      string `json:"mobile"`
	Purpose     string `json:"purpose,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// RecordDonation records a DONATION transaction.
func (h *CheckoutHandler) RecordDonation(c echo.Context) error {
	var req donationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.ImageBase64) > maxImageBase64 {
		return badRequest(c, "receipt image too large")
	}

	name := "Donation"
	if req.Purpose != "" {
		name = "Donation: " + req.Purpose
	}
	draft := model.Transaction{
		ItemType: model.ItemDonation,
		ItemName: name,
		Amount:   req.Amount,
		Donor:    &model.DonorDetails{Name: req.Name, Mobile: req.Mobile},
		Owner:    currentOwner(c),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Txs.Record(ctx, draft, req.ImageBase64)
	if err != nil {
		if errors.Is(err, service.ErrInvalid) {
			return badRequest(c, err.Error())
		}
		return serverError(c, "record donation failed")
	}
	return c.JSON(http.StatusCreated, tx)
}

type registrationReq struct {
	ProgramID    uint64            `json:"program_id"`
	Primary      model.Applicant   `json:"primary_applicant"`
	Participants []model.Applicant `json:"participants,omitempty"`
	Amount       int64             `json:"amount"`
	ImageBase64  string            `json:"image_base64,omitempty"`
}

// RecordRegistration records a PROGRAM_REGISTRATION transaction for an
// existing program.  The program's name, date and city are snapshotted
// onto the transaction so later edits to the program don't rewrite
// history.
func (h *CheckoutHandler) RecordRegistration(c echo.Context) error {
	var req registrationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.ImageBase64) > maxImageBase64 {
		return badRequest(c, "receipt image too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	program, err := h.Programs.GetByID(ctx, req.ProgramID)
	if err == repository.ErrNotFound {
		return notFound(c, "program not found")
	}
	if err != nil {
		return serverError(c, "record registration failed")
	}

	participants := req.Participants
	if len(participants) == 0 {
		participants = []model.Applicant{req.Primary}
	}
	draft := model.Transaction{
		ItemType: model.ItemProgramRegistration,
		ItemName: program.Name,
		Amount:   req.Amount,
		Registration: &model.RegistrationDetails{
			ProgramID:        program.ID,
			ProgramDate:      program.Date,
			ProgramCity:      program.City,
			Place:            program.Place,
			PrimaryApplicant: req.Primary,
			Participants:     participants,
			ParticipantCount: len(participants),
		},
		Owner: currentOwner(c),
	}

	tx, err := h.Txs.Record(ctx, draft, req.ImageBase64)
	if err != nil {
		if errors.Is(err, service.ErrInvalid) {
			return badRequest(c, err.Error())
		}
		return serverError(c, "record registration failed")
	}
	return c.JSON(http.StatusCreated, tx)
}

// LastShipping returns the shipping details saved at the owner's most
// recent book order, or 404 when none were saved.
func (h *CheckoutHandler) LastShipping(c echo.Context) error {
	if h.Redis == nil {
		return notFound(c, "no saved shipping details")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	raw, err := h.Redis.Get(ctx, shippingKey(currentOwner(c))).Bytes()
	if err != nil {
		return notFound(c, "no saved shipping details")
	}
	var sh model.ShippingDetails
	if json.Unmarshal(raw, &sh) != nil {
		return notFound(c, "no saved shipping details")
	}
	return c.JSON(http.StatusOK, sh)
}

// saveShipping is best effort; losing it only costs the buyer some
// retyping next time.
func (h *CheckoutHandler) saveShipping(ctx context.Context, owner model.Owner, sh model.ShippingDetails) {
	if h.Redis == nil {
		return
	}
	raw, err := json.Marshal(sh)
	if err != nil {
		return
	}
	_ = h.Redis.Set(ctx, shippingKey(owner), raw, shippingTTL).Err()
}

func shippingKey(owner model.Owner) string {
	if owner.ByAccount() {
		return fmt.Sprintf("shipping:user:%d", owner.UserID)
	}
	return "shipping:device:" + owner.DeviceID
}
