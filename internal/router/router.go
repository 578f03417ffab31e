package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/handler"
	"github.com/iliyamo/linkmarket/internal/metrics"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
)

// Handlers bundles everything the API mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Orders      *handler.OrderHandler
	Submissions *handler.SubmissionHandler
	Messages    *handler.MessageHandler
	Payments    *handler.PaymentHandler
	Catalog     *handler.CatalogHandler
	Files       *handler.FileHandler
	Health      echo.HandlerFunc
}

// Options carries the per-route middleware that depends on runtime
// wiring. Nil cache middleware disables caching.
type Options struct {
	JWTSecret  string
	CacheRead  echo.MiddlewareFunc
	CachePurge echo.MiddlewareFunc
}

// Register mounts /healthz, /metrics and the /api tree. Uploads are
// served at both /files/* and /api/files/*.
func Register(e *echo.Echo, h Handlers, o Options) {
	if o.CacheRead == nil {
		o.CacheRead = noop
	}
	if o.CachePurge == nil {
		o.CachePurge = noop
	}

	RegisterRoutes(e, h.Health)
	e.GET("/files/*", h.Files.Serve)

	api := e.Group("/api")
	api.GET("/files/*", h.Files.Serve)
	RegisterAuth(api, h.Auth, o.JWTSecret)
	RegisterOrders(api, h.Orders, o.JWTSecret)
	RegisterPayments(api, h.Payments, o.JWTSecret)
	RegisterSubmissions(api, h.Submissions, o.JWTSecret)
	RegisterMessages(api, h.Messages, o.JWTSecret)
	RegisterCatalog(api, h.Catalog, o)
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

// RegisterRoutes registers routes that do not require authentication and
// live outside /api: the health check and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers session endpoints under /api/auth and the admin
// user management endpoints under /api/users.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, jwtSecret string) {
	g := api.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout works with just the refresh token; a bearer token, when
	// sent, revokes every session of that user.
	g.POST("/logout", a.Logout, middleware.OptionalAuth(jwtSecret))
	g.GET("/verify-email", a.VerifyEmail)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	jwt := middleware.JWTAuth(jwtSecret)
	g.GET("/me", a.Me, jwt)
	g.POST("/change-password", a.ChangePassword, jwt)

	users := api.Group("/users", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	users.GET("", a.ListUsers)
	users.PATCH("/:id/status", a.UpdateUserStatus)
	users.PATCH("/:id/balance", a.AdjustBalance)
}
