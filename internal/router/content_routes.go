package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/handler"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
)

// RegisterSubmissions mounts /api/site-submissions. Creating one is public
// so site owners can submit without an account.
func RegisterSubmissions(api *echo.Group, h *handler.SubmissionHandler, jwtSecret string) {
	api.POST("/site-submissions", h.CreateSubmission, middleware.OptionalAuth(jwtSecret))

	g := api.Group("/site-submissions", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	g.GET("", h.ListSubmissions)
	g.GET("/:id", h.GetSubmission)
	g.PUT("/:id", h.UpdateSubmission)
	g.DELETE("/:id", h.DeleteSubmission)
}

// RegisterMessages mounts /api/messages including the SSE stream, which
// also accepts the access token as ?token= for EventSource clients. The
// unscoped listing is the admin inbox; users read their threads at /me.
func RegisterMessages(api *echo.Group, h *handler.MessageHandler, jwtSecret string) {
	g := api.Group("/messages", middleware.JWTAuth(jwtSecret))
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	g.POST("", h.CreateMessage)
	g.GET("", h.ListMessages, adminOnly)
	g.GET("/me", h.MyMessages)
	g.GET("/stream", h.Stream)
	g.GET("/:id", h.GetMessage)
	g.POST("/:id/reply", h.Reply)
	g.PUT("/:id", h.UpdateMessage, adminOnly)
	g.DELETE("/:id", h.DeleteMessage, adminOnly)
}

// RegisterCatalog mounts services and their packages. Reads are public
// and cached; writes are admin only and purge the cache.
func RegisterCatalog(api *echo.Group, h *handler.CatalogHandler, o Options) {
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(o.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
		o.CachePurge,
	}

	s := api.Group("/services")
	s.GET("", h.ListServices, o.CacheRead)
	s.GET("/:id", h.GetService, o.CacheRead)
	s.GET("/:id/packages", h.ListPackages, o.CacheRead)
	s.POST("", h.CreateService, admin...)
	s.PUT("/:id", h.UpdateService, admin...)
	s.DELETE("/:id", h.DeleteService, admin...)

	p := api.Group("/service-packages")
	p.GET("", h.ListPackages, o.CacheRead)
	p.GET("/:id", h.GetPackage, o.CacheRead)
	p.POST("", h.CreatePackage, admin...)
	p.PUT("/:id", h.UpdatePackage, admin...)
	p.DELETE("/:id", h.DeletePackage, admin...)
}
