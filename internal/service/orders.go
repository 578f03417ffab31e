package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/notify"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/utils"
)

type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, o *model.Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.OrderFilter) ([]model.Order, int, error)
	Totals(ctx context.Context, userID string) ([]repository.StatusTotals, error)
}

// CreateOrderInput is the checkout payload. Amount is accepted as an
// alias of Price; Status is ignored since new orders always start
// pending.
type CreateOrderInput struct {
	UserID      string
	UserEmail   string
	ItemName    string
	Price       float64
	Amount      float64
	Type        string
	Features    []string
	ArticleText string
	File        *model.OrderFile
	Message     string
	Status      model.OrderStatus
}

// OrderPatch carries the fields an update may change. Nil leaves the
// stored value untouched.
type OrderPatch struct {
	ItemName          *string
	Price             *float64
	Type              *string
	Features          []string
	ArticleText       *string
	File              *model.OrderFile
	Message           *string
	Status            *model.OrderStatus
	CompletionMessage *string
	CompletionLink    *string
}

// OrderPage is one page of orders plus pagination totals.
type OrderPage struct {
	Orders     []model.Order
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

type Orders struct {
	store  OrderStore
	users  UserLookup
	notify notify.Notifier
	log    *zap.Logger
	now    Clock
}

func NewOrders(store OrderStore, users UserLookup, n notify.Notifier, log *zap.Logger) *Orders {
	return &Orders{store: store, users: users, notify: n, log: log, now: utcNow}
}

func (s *Orders) resolveUser(ctx context.Context, id, email string) (*model.User, error) {
	if utils.IsID(id) {
		u, err := s.users.GetByID(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(s.log, "user", "load", err)
		}
	}
	if email = strings.TrimSpace(email); email != "" {
		u, err := s.users.GetByEmail(ctx, email)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(s.log, "user", "load", err)
		}
	}
	return nil, apperror.NotFound("user")
}

// CreateOrder resolves the buyer first, so an unknown user is NOT_FOUND
// even when the rest of the input is also invalid.
func (s *Orders) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	u, err := s.resolveUser(ctx, in.UserID, in.UserEmail)
	if err != nil {
		return nil, err
	}

	price := in.Price
	if price <= 0 {
		price = in.Amount
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, apperror.BadRequest("price must be greater than 0")
	}
	var missing []apperror.FieldError
	if strings.TrimSpace(in.ItemName) == "" {
		missing = append(missing, apperror.FieldError{Field: "itemName", Message: "is required"})
	}
	if strings.TrimSpace(in.Type) == "" {
		missing = append(missing, apperror.FieldError{Field: "type", Message: "is required"})
	}
	if len(missing) > 0 {
		return nil, apperror.Validation(missing...)
	}

	now := s.now()
	o := &model.Order{
		ID:          utils.NewID(),
		UserID:      u.ID,
		UserName:    u.Nicename,
		UserEmail:   u.Email,
		ItemName:    strings.TrimSpace(in.ItemName),
		Price:       price,
		Type:        strings.TrimSpace(in.Type),
		Features:    in.Features,
		ArticleText: in.ArticleText,
		File:        in.File,
		Message:     in.Message,
		Status:      model.OrderPending,
		CreatedAt:   now,
		SubmittedAt: &now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, storeErr(s.log, "order", "create", err)
	}
	s.log.Info("order created", zap.String("order_id", o.ID), zap.String("user_id", o.UserID), zap.Float64("price", o.Price))
	return o, nil
}

func (s *Orders) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "order", "load", err)
	}
	return o, nil
}

func (p OrderPatch) apply(o *model.Order) error {
	if p.Status != nil && !p.Status.Valid() {
		return apperror.BadRequest("invalid order status: " + string(*p.Status))
	}
	if p.Price != nil && *p.Price <= 0 {
		return apperror.BadRequest("price must be greater than 0")
	}
	if p.ItemName != nil {
		o.ItemName = *p.ItemName
	}
	if p.Price != nil {
		o.Price = *p.Price
	}
	if p.Type != nil {
		o.Type = *p.Type
	}
	if p.Features != nil {
		o.Features = p.Features
	}
	if p.ArticleText != nil {
		o.ArticleText = *p.ArticleText
	}
	if p.File != nil {
		o.File = p.File
	}
	if p.Message != nil {
		o.Message = *p.Message
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.CompletionMessage != nil {
		o.CompletionMessage = *p.CompletionMessage
	}
	if p.CompletionLink != nil {
		o.CompletionLink = *p.CompletionLink
	}
	return nil
}

// UpdateOrder applies patch and persists the result. A status change
// dispatches one email chosen by notifyTransition.
func (s *Orders) UpdateOrder(ctx context.Context, id string, patch OrderPatch) (*model.Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "order", "load", err)
	}
	prior := o.Status
	if err := patch.apply(o); err != nil {
		return nil, err
	}
	now := s.now()
	o.UpdatedAt = now
	if o.Status == model.OrderCompleted && prior != model.OrderCompleted && o.CompletedAt == nil {
		o.CompletedAt = &now
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, storeErr(s.log, "order", "update", err)
	}
	if o.Status != prior {
		s.log.Info("order status changed", zap.String("order_id", o.ID),
			zap.String("from", string(prior)), zap.String("to", string(o.Status)))
		s.notifyTransition(ctx, *o, prior)
	}
	return o, nil
}

// notifyTransition picks the single email for prior -> o.Status:
// pending->processing confirms payment, anything->completed announces
// completion, and failed or a non-pending->processing move gets the
// generic update.
func (s *Orders) notifyTransition(ctx context.Context, o model.Order, prior model.OrderStatus) {
	switch {
	case prior == model.OrderPending && o.Status == model.OrderProcessing:
		bestEffort(s.log, notify.KindPaymentConfirmed, o.ID, s.notify.OrderPaymentConfirmed(ctx, o))
	case o.Status == model.OrderCompleted:
		bestEffort(s.log, notify.KindOrderCompleted, o.ID, s.notify.OrderCompleted(ctx, o))
	case o.Status == model.OrderFailed, o.Status == model.OrderProcessing:
		bestEffort(s.log, notify.KindOrderStatusUpdated, o.ID, s.notify.OrderStatusUpdated(ctx, o, prior))
	}
}

// CompleteOrder marks the order completed and always sends the
// completion email, even when it was already completed.
func (s *Orders) CompleteOrder(ctx context.Context, id, message, link string) (*model.Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "order", "load", err)
	}
	now := s.now()
	o.Status = model.OrderCompleted
	if message != "" {
		o.CompletionMessage = message
	}
	if link != "" {
		o.CompletionLink = link
	}
	o.CompletedAt = &now
	o.UpdatedAt = now
	if err := s.store.Update(ctx, o); err != nil {
		return nil, storeErr(s.log, "order", "update", err)
	}
	bestEffort(s.log, notify.KindOrderCompleted, o.ID, s.notify.OrderCompleted(ctx, *o))
	return o, nil
}

func (s *Orders) DeleteOrder(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr(s.log, "order", "delete", err)
	}
	s.log.Info("order deleted", zap.String("order_id", id))
	return nil
}

func (s *Orders) GetOrders(ctx context.Context, f repository.OrderFilter) (*OrderPage, error) {
	f.Page = f.Page.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.BadRequest("invalid order status: " + string(f.Status))
	}
	orders, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, storeErr(s.log, "orders", "list", err)
	}
	return &OrderPage{
		Orders:     orders,
		Page:       f.Page.Page,
		Limit:      f.Page.Limit,
		Total:      total,
		TotalPages: f.Page.TotalPages(total),
	}, nil
}

func (s *Orders) GetOrdersByUserEmail(ctx context.Context, email string, p repository.Page) (*OrderPage, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.BadRequest("user email is required")
	}
	return s.GetOrders(ctx, repository.OrderFilter{UserEmail: email, Page: p})
}

// GetOrderStats counts orders per status and sums their prices across
// every status, optionally for a single user.
func (s *Orders) GetOrderStats(ctx context.Context, userID string) (*model.OrderStats, error) {
	totals, err := s.store.Totals(ctx, userID)
	if err != nil {
		return nil, storeErr(s.log, "order stats", "load", err)
	}
	var st model.OrderStats
	for _, t := range totals {
		switch t.Status {
		case model.OrderPending:
			st.Pending += t.Count
		case model.OrderProcessing:
			st.Processing += t.Count
		case model.OrderCompleted:
			st.Completed += t.Count
		case model.OrderFailed:
			st.Failed += t.Count
		default:
			continue
		}
		st.Total += t.Count
		st.TotalRevenue += t.Sum
	}
	if st.Total > 0 {
		st.AverageOrderValue = st.TotalRevenue / float64(st.Total)
	}
	return &st, nil
}
