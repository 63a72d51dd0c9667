package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/service"
)

// AdminCatalogHandler manages the storefront content: books and their
// covers, programs and their banners, and the daily schedule.
type AdminCatalogHandler struct {
	Books     *repository.BookRepo
	Programs  *repository.ProgramRepo
	Schedules *repository.ScheduleRepo
	Txs       *repository.TransactionRepo
	Stats     *service.StatsService
}

func NewAdminCatalogHandler(b *repository.BookRepo, p *repository.ProgramRepo, s *repository.ScheduleRepo, t *repository.TransactionRepo, stats *service.StatsService) *AdminCatalogHandler {
	return &AdminCatalogHandler{Books: b, Programs: p, Schedules: s, Txs: t, Stats: stats}
}

type bookReq struct {
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Category    string `json:"category,omitempty"`
	Price       int64  `json:"price"`
	Description string `json:"description,omitempty"`
	CoverBase64 string `json:"cover_base64,omitempty"`
}

// CreateBook adds a catalog entry, optionally with its cover in the
// same request.
func (h *AdminCatalogHandler) CreateBook(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Title == "" || req.Price < 0 {
		return badRequest(c, "title and a non-negative price required")
	}
	if len(req.CoverBase64) > maxImageBase64 {
		return badRequest(c, "cover image too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	book := model.Book{
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
		HasCover:    req.CoverBase64 != "",
	}
	if err := h.Books.Create(ctx, &book); err != nil {
		return serverError(c, "create book failed")
	}
	if req.CoverBase64 != "" {
		if err := h.Books.SetCover(ctx, book.ID, req.CoverBase64); err != nil {
			return serverError(c, "save cover failed")
		}
	}
	return c.JSON(http.StatusCreated, book)
}

// UpdateBook rewrites a catalog entry; a cover in the request replaces
// the stored one.
func (h *AdminCatalogHandler) UpdateBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid book id")
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.CoverBase64) > maxImageBase64 {
		return badRequest(c, "cover image too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	book, err := h.Books.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return notFound(c, "book not found")
	}
	if err != nil {
		return serverError(c, "update book failed")
	}

	book.Title = req.Title
	book.Author = req.Author
	book.Category = req.Category
	book.Price = req.Price
	book.Description = req.Description
	if req.CoverBase64 != "" {
		book.HasCover = true
	}
	if err := h.Books.Update(ctx, book); err != nil {
		return serverError(c, "update book failed")
	}
	if req.CoverBase64 != "" {
		if err := h.Books.SetCover(ctx, book.ID, req.CoverBase64); err != nil {
			return serverError(c, "save cover failed")
		}
	}
	return c.JSON(http.StatusOK, book)
}

// DeleteBook removes a catalog entry and its cover.
func (h *AdminCatalogHandler) DeleteBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid book id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Books.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "book not found")
		}
		return serverError(c, "delete book failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type programReq struct {
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Date         string `json:"date,omitempty"`
	City         string `json:"city,omitempty"`
	Place        string `json:"place,omitempty"`
	BannerBase64 string `json:"banner_base64,omitempty"`
}

// CreateProgram opens a program for registration.
func (h *AdminCatalogHandler) CreateProgram(c echo.Context) error {
	var req programReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Name == "" {
		return badRequest(c, "name required")
	}
	if len(req.BannerBase64) > maxImageBase64 {
		return badRequest(c, "banner image too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	program := model.Program{
		Name:      req.Name,
		Category:  req.Category,
		Date:      req.Date,
		City:      req.City,
		Place:     req.Place,
		HasBanner: req.BannerBase64 != "",
	}
	if err := h.Programs.Create(ctx, &program); err != nil {
		return serverError(c, "create program failed")
	}
	if req.BannerBase64 != "" {
		if err := h.Programs.SetBanner(ctx, program.ID, req.BannerBase64); err != nil {
			return serverError(c, "save banner failed")
		}
	}
	if h.Stats != nil {
		h.Stats.ProgramAdded(ctx)
	}
	return c.JSON(http.StatusCreated, program)
}

// UpdateProgram rewrites a program; a banner in the request replaces
// the stored one.
func (h *AdminCatalogHandler) UpdateProgram(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid program id")
	}
	var req programReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.BannerBase64) > maxImageBase64 {
		return badRequest(c, "banner image too large")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	program, err := h.Programs.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return notFound(c, "program not found")
	}
	if err != nil {
		return serverError(c, "update program failed")
	}

	program.Name = req.Name
	program.Category = req.Category
	program.Date = req.Date
	program.City = req.City
	program.Place = req.Place
	if req.BannerBase64 != "" {
		program.HasBanner = true
	}
	if err := h.Programs.Update(ctx, program); err != nil {
		return serverError(c, "update program failed")
	}
	if req.BannerBase64 != "" {
		if err := h.Programs.SetBanner(ctx, program.ID, req.BannerBase64); err != nil {
			return serverError(c, "save banner failed")
		}
	}
	return c.JSON(http.StatusOK, program)
}

// HasRegistrations reports whether any live transaction registers for
// the program.  The console asks before offering to archive.
func (h *AdminCatalogHandler) HasRegistrations(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid program id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	has, err := h.Txs.HasForProgram(ctx, id)
	if err != nil {
		return serverError(c, "check failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"program_id": id, "has_registrations": has})
}

// ArchiveProgram closes a program and moves it plus its banner into
// the archive tables.  Programs with live registrations are refused
// unless force=true, so registrations aren't silently orphaned.
func (h *AdminCatalogHandler) ArchiveProgram(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid program id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if c.QueryParam("force") != "true" {
		has, err := h.Txs.HasForProgram(ctx, id)
		if err != nil {
			return serverError(c, "archive program failed")
		}
		if has {
			return c.JSON(http.StatusConflict, echo.Map{"error": "program has live registrations"})
		}
	}

	if err := h.Programs.Archive(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "program not found")
		}
		return serverError(c, "archive program failed")
	}
	if h.Stats != nil {
		h.Stats.ProgramRemoved(ctx)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateSchedule appends an entry to the daily schedule.
func (h *AdminCatalogHandler) CreateSchedule(c echo.Context) error {
	var entry model.Schedule
	if err := c.Bind(&entry); err != nil {
		return badRequest(c, "invalid body")
	}
	if entry.Title == "" || entry.StartTime == "" {
		return badRequest(c, "title and start_time required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Schedules.Create(ctx, &entry); err != nil {
		return serverError(c, "create schedule failed")
	}
	return c.JSON(http.StatusCreated, entry)
}

// UpdateSchedule rewrites a schedule entry.
func (h *AdminCatalogHandler) UpdateSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid schedule id")
	}
	var entry model.Schedule
	if err := c.Bind(&entry); err != nil {
		return badRequest(c, "invalid body")
	}
	entry.ID = id

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Schedules.Update(ctx, entry); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "schedule entry not found")
		}
		return serverError(c, "update schedule failed")
	}
	return c.JSON(http.StatusOK, entry)
}

// DeleteSchedule removes a schedule entry.
func (h *AdminCatalogHandler) DeleteSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid schedule id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Schedules.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return notFound(c, "schedule entry not found")
		}
		return serverError(c, "delete schedule failed")
	}
	return c.NoContent(http.StatusNoContent)
}
