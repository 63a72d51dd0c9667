// Package router maps the HTTP surface onto the handlers.  Routes are
// grouped by who may call them: public storefront, signed-in-or-device
// endpoints, and the admin console behind the grant check.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sribagavath/sbb-server/internal/config"
	"github.com/sribagavath/sbb-server/internal/handler"
	"github.com/sribagavath/sbb-server/internal/middleware"
	"github.com/sribagavath/sbb-server/internal/repository"
)

// Deps carries everything the route tree needs.
type Deps struct {
	Cfg         config.Config
	Auth        *handler.AuthHandler
	Catalog     *handler.CatalogHandler
	Cart        *handler.CartHandler
	Checkout    *handler.CheckoutHandler
	UserOrders  *handler.UserOrdersHandler
	AdminOrders *handler.AdminOrdersHandler
	AdminAccess *handler.AdminAccessHandler
	AdminCat    *handler.AdminCatalogHandler
	Stats       *handler.StatsHandler
	Admins      *repository.AdminRepo
	Redis       *redis.Client
}

// Register wires every route onto e.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Every route sees the device identity; anonymous carts and orders
	// hang off it.
	e.Use(middleware.DeviceIdentity())

	rl := middleware.RateLimit(config.LoadRateLimitConfig(), d.Redis)

	// Auth.
	auth := e.Group("/v1/auth", rl)
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout, middleware.JWTAuth(d.Cfg.JWTSecret))

	// Public storefront, cached.
	cache := middleware.ResponseCache(config.LoadCacheConfig(), d.Redis)
	pub := e.Group("/v1", cache)
	pub.GET("/books", d.Catalog.ListBooks)
	pub.GET("/books/:id", d.Catalog.GetBook)
	pub.GET("/books/:id/cover", d.Catalog.GetBookCover)
	pub.GET("/programs", d.Catalog.ListPrograms)
	pub.GET("/programs/:id", d.Catalog.GetProgram)
	pub.GET("/programs/:id/banner", d.Catalog.GetProgramBanner)
	pub.GET("/schedules", d.Catalog.ListSchedules)

	// Cart and checkout work for both device and account owners, so
	// the token is optional.
	optional := middleware.OptionalJWT(d.Cfg.JWTSecret)
	shop := e.Group("/v1", optional)
	shop.GET("/cart", d.Cart.Get)
	shop.POST("/cart/items", d.Cart.AddItem)
	shop.DELETE("/cart/items/:id", d.Cart.RemoveItem)
	shop.DELETE("/cart", d.Cart.Clear)

	shop.POST("/orders", d.Checkout.PlaceOrder, rl)
	shop.POST("/donations", d.Checkout.RecordDonation, rl)
	shop.POST("/registrations", d.Checkout.RecordRegistration, rl)
	shop.GET("/shipping/last", d.Checkout.LastShipping)

	shop.GET("/orders", d.UserOrders.List)
	shop.GET("/orders/stream", d.UserOrders.Stream)
	shop.GET("/orders/:id", d.UserOrders.Get)
	shop.GET("/orders/:id/receipt", d.UserOrders.Receipt)

	// Admin access requests need a signed-in user but not a grant.
	authed := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret))
	authed.GET("/me", d.Auth.Me)
	authed.GET("/admin-access/status", d.AdminAccess.Status)
	authed.POST("/admin-access/request", d.AdminAccess.Request)

	// The console proper sits behind the per-request grant check.
	admin := e.Group("/v1/admin", middleware.JWTAuth(d.Cfg.JWTSecret), middleware.RequireAdmin(d.Admins))
	admin.GET("/orders", d.AdminOrders.List)
	admin.GET("/orders/stream", d.AdminOrders.Stream)
	admin.GET("/orders/archived", d.AdminOrders.ListArchived)
	admin.GET("/orders/archived/:id", d.AdminOrders.GetArchived)
	admin.GET("/orders/:id", d.AdminOrders.Get)
	admin.PATCH("/orders/:id/status", d.AdminOrders.UpdateStatus)
	admin.DELETE("/orders/:id", d.AdminOrders.Delete)
	admin.POST("/orders/:id/archive", d.AdminOrders.Archive)
	admin.POST("/orders/archive-completed", d.AdminOrders.ArchiveCompleted)
	admin.DELETE("/orders/completed", d.AdminOrders.DeleteCompleted)
	admin.GET("/orders/:id/receipt", d.AdminOrders.Receipt)

	admin.GET("/access/requests", d.AdminAccess.ListRequests)
	admin.POST("/access/requests/:uid/approve", d.AdminAccess.Approve)
	admin.DELETE("/access/requests/:uid", d.AdminAccess.Reject)
	admin.GET("/access/grants", d.AdminAccess.ListGrants)
	admin.DELETE("/access/grants/:uid", d.AdminAccess.Revoke)

	admin.POST("/books", d.AdminCat.CreateBook)
	admin.PUT("/books/:id", d.AdminCat.UpdateBook)
	admin.DELETE("/books/:id", d.AdminCat.DeleteBook)
	admin.POST("/programs", d.AdminCat.CreateProgram)
	admin.PUT("/programs/:id", d.AdminCat.UpdateProgram)
	admin.GET("/programs/:id/has-registrations", d.AdminCat.HasRegistrations)
	admin.POST("/programs/:id/archive", d.AdminCat.ArchiveProgram)
	admin.POST("/schedules", d.AdminCat.CreateSchedule)
	admin.PUT("/schedules/:id", d.AdminCat.UpdateSchedule)
	admin.DELETE("/schedules/:id", d.AdminCat.DeleteSchedule)

	admin.GET("/stats", d.Stats.Totals)
	admin.POST("/stats/recalculate", d.Stats.Recalculate)
	admin.GET("/stats/geo-logins", d.Stats.GeoLogins)
}
