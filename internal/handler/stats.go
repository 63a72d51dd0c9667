package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/service"
)

// StatsHandler serves the admin dashboard's aggregate numbers.
type StatsHandler struct {
	Stats *service.StatsService
}

func NewStatsHandler(s *service.StatsService) *StatsHandler {
	return &StatsHandler{Stats: s}
}

// Totals returns the running totals row.
func (h *StatsHandler) Totals(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	totals, err := h.Stats.Totals(ctx)
	if err != nil {
		return serverError(c, "load stats failed")
	}
	return c.JSON(http.StatusOK, totals)
}

// Recalculate rebuilds the totals from the source tables.  The
// incremental counters drift if a write is lost; this endpoint is the
// repair tool.
func (h *StatsHandler) Recalculate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	totals, err := h.Stats.Recalculate(ctx)
	if err != nil {
		return serverError(c, "recalculate failed")
	}
	return c.JSON(http.StatusOK, totals)
}

// GeoLogins returns the per-location login counts for a month, given
// as ?month=2006-01 and defaulting to the current month.
func (h *StatsHandler) GeoLogins(c echo.Context) error {
	month := c.QueryParam("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return badRequest(c, "month must look like 2006-01")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	counts, err := h.Stats.GeoLogins(ctx, month)
	if err != nil {
		return serverError(c, "load geo logins failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"month": month, "locations": counts})
}
