package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/handler"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
)

// RegisterOrders mounts /api/orders. Users create and read their own
// orders; everything that changes an existing order is admin only.
func RegisterOrders(api *echo.Group, h *handler.OrderHandler, jwtSecret string) {
	g := api.Group("/orders", middleware.JWTAuth(jwtSecret))
	g.POST("", h.CreateOrder)
	g.GET("", h.ListOrders)
	g.GET("/stats", h.Stats)
	g.GET("/user/:userEmail", h.ListOrdersByUserEmail)
	g.GET("/:id", h.GetOrder)

	adminOnly := middleware.RequireRole(model.RoleAdmin)
	g.PUT("/:id", h.UpdateOrder, adminOnly)
	g.PATCH("/:id/complete", h.CompleteOrder, adminOnly)
	g.DELETE("/:id", h.DeleteOrder, adminOnly)
}

// RegisterPayments mounts the Stripe and PayPal endpoints. Any signed-in
// user may pay.
func RegisterPayments(api *echo.Group, h *handler.PaymentHandler, jwtSecret string) {
	g := api.Group("/payments", middleware.JWTAuth(jwtSecret))
	g.POST("/stripe/create-intent", h.CreateStripeIntent)
	g.GET("/stripe/verify/:paymentIntentId", h.VerifyStripePayment)
	g.POST("/paypal/create", h.CreatePayPalPayment)
	g.POST("/paypal/execute", h.ExecutePayPalPayment)
}
