package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/payment"
	"github.com/iliyamo/linkmarket/internal/service"
)

type StripeGateway interface {
	CreatePaymentIntent(ctx context.Context, r payment.IntentRequest) (*payment.Result, error)
	VerifyPayment(ctx context.Context, intentID string) (*payment.Result, error)
}

type PayPalGateway interface {
	CreatePayment(ctx context.Context, r payment.PaymentRequest) (*payment.Result, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) (*payment.Result, error)
}

// OrderUpdater moves paid orders forward.
type OrderUpdater interface {
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	UpdateOrder(ctx context.Context, id string, patch service.OrderPatch) (*model.Order, error)
}

type PaymentHandler struct {
	stripe StripeGateway
	paypal PayPalGateway
	orders OrderUpdater
	log    *zap.Logger
}

func NewPaymentHandler(stripe StripeGateway, paypal PayPalGateway, orders OrderUpdater, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{stripe: stripe, paypal: paypal, orders: orders, log: log}
}

type createIntentReq struct {
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency" validate:"omitempty,len=3"`
	OrderID  string  `json:"orderId"`
}

type createPayPalReq struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	Description string  `json:"description" validate:"max=127"`
	OrderID     string  `json:"orderId"`
}

type executePayPalReq struct {
	PaymentID string `json:"paymentId" validate:"required"`
	PayerID   string `json:"payerId" validate:"required"`
}

type paymentResp struct {
	*payment.Result
	Order *model.Order `json:"order,omitempty"`
}

// checkOrder makes sure a referenced order exists and belongs to the
// caller before money moves.
func (h *PaymentHandler) checkOrder(c echo.Context, orderID string) error {
	if orderID == "" {
		return nil
	}
	o, err := h.orders.GetOrderByID(c.Request().Context(), orderID)
	if err != nil {
		return err
	}
	if !middleware.IsAdmin(c) && o.UserID != middleware.UserID(c) {
		return apperror.NotFound("order")
	}
	return nil
}

// markPaid moves a pending order to processing. Orders already past
// pending are returned unchanged, so repeating a verification never
// reopens a completed or failed order. The payment already went
// through, so a failure here is logged and the response still
// succeeds.
func (h *PaymentHandler) markPaid(ctx context.Context, res *payment.Result) *model.Order {
	if !res.Success || res.OrderID == "" {
		return nil
	}
	cur, err := h.orders.GetOrderByID(ctx, res.OrderID)
	if err != nil {
		h.log.Warn("load paid order failed",
			zap.String("order_id", res.OrderID),
			zap.String("payment_id", res.PaymentID),
			zap.Error(err))
		return nil
	}
	if cur.Status != model.OrderPending {
		return cur
	}
	st := model.OrderProcessing
	o, err := h.orders.UpdateOrder(ctx, res.OrderID, service.OrderPatch{Status: &st})
	if err != nil {
		h.log.Warn("mark order paid failed",
			zap.String("order_id", res.OrderID),
			zap.String("payment_id", res.PaymentID),
			zap.Error(err))
		return nil
	}
	return o
}

func (h *PaymentHandler) CreateStripeIntent(c echo.Context) error {
	var req createIntentReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.checkOrder(c, req.OrderID); err != nil {
		return err
	}
	res, err := h.stripe.CreatePaymentIntent(c.Request().Context(), payment.IntentRequest{
		Amount: req.Amount, Currency: req.Currency, UserID: middleware.UserID(c), OrderID: req.OrderID,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "payment intent created", res)
}

func (h *PaymentHandler) VerifyStripePayment(c echo.Context) error {
	res, err := h.stripe.VerifyPayment(c.Request().Context(), c.Param("paymentIntentId"))
	if err != nil {
		return err
	}
	if res.UserID != "" && !middleware.IsAdmin(c) && res.UserID != middleware.UserID(c) {
		return apperror.NotFound("payment")
	}
	msg := "payment not completed"
	if res.Success {
		msg = "payment verified"
	}
	return respond(c, http.StatusOK, msg, paymentResp{Result: res, Order: h.markPaid(c.Request().Context(), res)})
}

func (h *PaymentHandler) CreatePayPalPayment(c echo.Context) error {
	var req createPayPalReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.checkOrder(c, req.OrderID); err != nil {
		return err
	}
	res, err := h.paypal.CreatePayment(c.Request().Context(), payment.PaymentRequest{
		Amount: req.Amount, Currency: req.Currency, Description: req.Description, OrderID: req.OrderID,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "paypal payment created", res)
}

func (h *PaymentHandler) ExecutePayPalPayment(c echo.Context) error {
	var req executePayPalReq
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.paypal.ExecutePayment(c.Request().Context(), req.PaymentID, req.PayerID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "payment executed", paymentResp{Result: res, Order: h.markPaid(c.Request().Context(), res)})
}
