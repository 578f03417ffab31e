package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/service"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	UpdateOrder(ctx context.Context, id string, patch service.OrderPatch) (*model.Order, error)
	CompleteOrder(ctx context.Context, id, message, link string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	GetOrders(ctx context.Context, f repository.OrderFilter) (*service.OrderPage, error)
	GetOrdersByUserEmail(ctx context.Context, email string, p repository.Page) (*service.OrderPage, error)
	GetOrderStats(ctx context.Context, userID string) (*model.OrderStats, error)
}

type OrderHandler struct {
	svc   OrderService
	files FileSaver
}

func NewOrderHandler(svc OrderService, files FileSaver) *OrderHandler {
	return &OrderHandler{svc: svc, files: files}
}

type createOrderReq struct {
	UserID      string            `json:"userId" form:"userId"`
	UserEmail   string            `json:"userEmail" form:"userEmail"`
	ItemName    string            `json:"itemName" form:"itemName"`
	Price       float64           `json:"price" form:"price"`
	Amount      float64           `json:"amount" form:"amount"`
	Type        string            `json:"type" form:"type"`
	Features    []string          `json:"features" form:"features"`
	ArticleText string            `json:"articleText" form:"articleText"`
	Message     string            `json:"message" form:"message"`
	Status      model.OrderStatus `json:"status" form:"status"`
	File        *model.OrderFile  `json:"file" form:"-"`
}

type updateOrderReq struct {
	ItemName          *string            `json:"itemName"`
	Price             *float64           `json:"price"`
	Type              *string            `json:"type"`
	Features          []string           `json:"features"`
	ArticleText       *string            `json:"articleText"`
	File              *model.OrderFile   `json:"file"`
	Message           *string            `json:"message"`
	Status            *model.OrderStatus `json:"status"`
	CompletionMessage *string            `json:"completionMessage"`
	CompletionLink    *string            `json:"completionLink"`
}

type completeOrderReq struct {
	CompletionMessage string `json:"completionMessage"`
	CompletionLink    string `json:"completionLink"`
}

func orderPagination(p *service.OrderPage) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages}
}

// CreateOrder accepts JSON or a multipart form with an optional file
// part. Non-admins always order for themselves.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req createOrderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if !middleware.IsAdmin(c) || (req.UserID == "" && req.UserEmail == "") {
		req.UserID, req.UserEmail = middleware.UserID(c), middleware.Email(c)
	}
	saved, err := formFile(c, h.files, "file", "orders")
	if err != nil {
		return err
	}
	if saved != nil {
		req.File = &model.OrderFile{Name: saved.Name, Path: saved.Path, Size: saved.Size, MimeType: saved.MimeType}
	}

	o, err := h.svc.CreateOrder(c.Request().Context(), service.CreateOrderInput{
		UserID:      req.UserID,
		UserEmail:   req.UserEmail,
		ItemName:    req.ItemName,
		Price:       req.Price,
		Amount:      req.Amount,
		Type:        req.Type,
		Features:    req.Features,
		ArticleText: req.ArticleText,
		File:        req.File,
		Message:     req.Message,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "order created", o)
}

// GetOrder returns one order. Users only see their own.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	o, err := h.svc.GetOrderByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !middleware.IsAdmin(c) && o.UserID != middleware.UserID(c) {
		return apperror.NotFound("order")
	}
	return respond(c, http.StatusOK, "", o)
}

// ListOrders filters by userId, userEmail, status, type, from and to.
// Non-admins are pinned to their own orders.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	from, err := timeParam(c, "from")
	if err != nil {
		return err
	}
	to, err := timeParam(c, "to")
	if err != nil {
		return err
	}
	f := repository.OrderFilter{
		UserID:    c.QueryParam("userId"),
		UserEmail: c.QueryParam("userEmail"),
		Status:    model.OrderStatus(c.QueryParam("status")),
		Type:      c.QueryParam("type"),
		From:      from,
		To:        to,
		Page:      pageParams(c),
	}
	if !middleware.IsAdmin(c) {
		f.UserID, f.UserEmail = middleware.UserID(c), ""
	}
	page, err := h.svc.GetOrders(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respondPage(c, "", page.Orders, orderPagination(page))
}

func (h *OrderHandler) ListOrdersByUserEmail(c echo.Context) error {
	email := strings.ToLower(strings.TrimSpace(c.Param("userEmail")))
	if !middleware.IsAdmin(c) && email != strings.ToLower(middleware.Email(c)) {
		return apperror.Forbidden("you can only list your own orders")
	}
	page, err := h.svc.GetOrdersByUserEmail(c.Request().Context(), email, pageParams(c))
	if err != nil {
		return err
	}
	return respondPage(c, "", page.Orders, orderPagination(page))
}

// Stats aggregates all orders for admins (optionally ?userId=) and
// the caller's own orders otherwise.
func (h *OrderHandler) Stats(c echo.Context) error {
	userID := c.QueryParam("userId")
	if !middleware.IsAdmin(c) {
		userID = middleware.UserID(c)
	}
	st, err := h.svc.GetOrderStats(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", st)
}

func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	var req updateOrderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	o, err := h.svc.UpdateOrder(c.Request().Context(), c.Param("id"), service.OrderPatch{
		ItemName:          req.ItemName,
		Price:             req.Price,
		Type:              req.Type,
		Features:          req.Features,
		ArticleText:       req.ArticleText,
		File:              req.File,
		Message:           req.Message,
		Status:            req.Status,
		CompletionMessage: req.CompletionMessage,
		CompletionLink:    req.CompletionLink,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "order updated", o)
}

func (h *OrderHandler) CompleteOrder(c echo.Context) error {
	var req completeOrderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	o, err := h.svc.CompleteOrder(c.Request().Context(), c.Param("id"), req.CompletionMessage, req.CompletionLink)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "order completed", o)
}

func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	if err := h.svc.DeleteOrder(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "order deleted", nil)
}
