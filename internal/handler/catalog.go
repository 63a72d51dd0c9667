package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/repository"
)

// CatalogHandler serves the public storefront: books, programs and the
// daily schedule.  Everything here is read-only and anonymous.
type CatalogHandler struct {
	Books     *repository.BookRepo
	Programs  *repository.ProgramRepo
	Schedules *repository.ScheduleRepo
}

func NewCatalogHandler(b *repository.BookRepo, p *repository.ProgramRepo, s *repository.ScheduleRepo) *CatalogHandler {
	return &CatalogHandler{Books: b, Programs: p, Schedules: s}
}

// ListBooks returns the full catalog sorted by title.
func (h *CatalogHandler) ListBooks(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Books.List(ctx)
	if err != nil {
		return serverError(c, "list books failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"books": books})
}

// GetBook returns a single catalog entry.
func (h *CatalogHandler) GetBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid book id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	book, err := h.Books.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return notFound(c, "book not found")
	}
	if err != nil {
		return serverError(c, "get book failed")
	}
	return c.JSON(http.StatusOK, book)
}

// GetBookCover returns the base64 cover image for a book.
func (h *CatalogHandler) GetBookCover(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid book id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cover, err := h.Books.GetCover(ctx, id)
	if err == repository.ErrNotFound {
		return notFound(c, "no cover for this book")
	}
	if err != nil {
		return serverError(c, "get cover failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"book_id": id, "base64": cover})
}

// ListPrograms returns the open programs, newest first.
func (h *CatalogHandler) ListPrograms(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	programs, err := h.Programs.List(ctx)
	if err != nil {
		return serverError(c, "list programs failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"programs": programs})
}

// GetProgram returns a single program.
func (h *CatalogHandler) GetProgram(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid program id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	program, err := h.Programs.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return notFound(c, "program not found")
	}
	if err != nil {
		return serverError(c, "get program failed")
	}
	return c.JSON(http.StatusOK, program)
}

// GetProgramBanner returns the base64 banner image for a program.
func (h *CatalogHandler) GetProgramBanner(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid program id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	banner, err := h.Programs.GetBanner(ctx, id)
	if err == repository.ErrNotFound {
		return notFound(c, "no banner for this program")
	}
	if err != nil {
		return serverError(c, "get banner failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"program_id": id, "base64": banner})
}

// ListSchedules returns the daily schedule ordered by position.
func (h *CatalogHandler) ListSchedules(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Schedules.List(ctx)
	if err != nil {
		return serverError(c, "list schedules failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": entries})
}
