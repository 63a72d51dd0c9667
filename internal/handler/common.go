package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/middleware"
	"github.com/sribagavath/sbb-server/internal/model"
)

// currentOwner resolves the owning identity for a request: the user ID
// when authenticated, otherwise the device ID.  Exactly one side of
// the returned Owner is set.
func currentOwner(c echo.Context) model.Owner {
	if uid, ok := middleware.UserID(c); ok {
		return model.Owner{UserID: uid}
	}
	return model.Owner{DeviceID: middleware.DeviceID(c)}
}

// pathID parses a numeric :id style path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
}

func serverError(c echo.Context, msg string) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}
