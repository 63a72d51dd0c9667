package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DeviceHeader carries the client's locally persisted device identity.
// It links carts and anonymous orders across visits.
const DeviceHeader = "X-Device-ID"

// DeviceIdentity reads the device identity header and stores it in the
// context.  When a client arrives without one a fresh UUID is minted
// and echoed back so the client can persist it; anonymous orders and
// carts hang off this value.
func DeviceIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(DeviceHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			c.Set(DeviceIDKey, id)
			c.Response().Header().Set(DeviceHeader, id)
			return next(c)
		}
	}
}
