package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
)

const buyerID = "7d1b6a36-3f0f-4e55-9d8e-0b7f4f6f0a11"

var buyer = model.User{ID: buyerID, Nicename: "ann", Email: "ann@example.com", Role: model.RoleUser, Status: model.AccountActive}

func newOrdersFixture(t *testing.T) (*Orders, *memOrders, *mockNotifier) {
	t.Helper()
	store := newMemOrders()
	n := &mockNotifier{}
	s := NewOrders(store, newMemUsers(buyer), n, zap.NewNop())
	s.now = fixedClock
	t.Cleanup(func() { n.AssertExpectations(t) })
	return s, store, n
}

func seedOrder(t *testing.T, s *Orders, store *memOrders, status model.OrderStatus) *model.Order {
	t.Helper()
	o, err := s.CreateOrder(context.Background(), CreateOrderInput{UserID: buyerID, ItemName: "Guest post", Price: 50, Type: "article"})
	require.NoError(t, err)
	if status != model.OrderPending {
		stored := store.rows[o.ID]
		stored.Status = status
		store.rows[o.ID] = stored
	}
	return o
}

func TestCreateOrderForcesPending(t *testing.T) {
	s, store, _ := newOrdersFixture(t)

	o, err := s.CreateOrder(context.Background(), CreateOrderInput{
		UserID: buyerID, ItemName: "Guest post", Price: 50, Type: "article", Status: model.OrderCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, 50.0, o.Price)
	assert.Equal(t, "ann", o.UserName)
	assert.Equal(t, "ann@example.com", o.UserEmail)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Contains(t, store.rows, o.ID)
}

func TestCreateOrderResolvesUser(t *testing.T) {
	s, _, _ := newOrdersFixture(t)
	ctx := context.Background()

	t.Run("falls back to email when id is not an identifier", func(t *testing.T) {
		o, err := s.CreateOrder(ctx, CreateOrderInput{UserID: "42", UserEmail: "ann@example.com", ItemName: "x", Price: 1, Type: "link"})
		require.NoError(t, err)
		assert.Equal(t, buyerID, o.UserID)
	})

	t.Run("falls back to email when id is unknown", func(t *testing.T) {
		o, err := s.CreateOrder(ctx, CreateOrderInput{
			UserID: "00000000-0000-4000-8000-000000000000", UserEmail: "ann@example.com", ItemName: "x", Price: 1, Type: "link",
		})
		require.NoError(t, err)
		assert.Equal(t, buyerID, o.UserID)
	})

	t.Run("not found when nothing resolves", func(t *testing.T) {
		_, err := s.CreateOrder(ctx, CreateOrderInput{UserEmail: "ghost@example.com", ItemName: "x", Price: 1, Type: "link"})
		assert.Equal(t, 404, apperror.StatusOf(err))
	})
}

func TestCreateOrderValidation(t *testing.T) {
	s, store, _ := newOrdersFixture(t)
	ctx := context.Background()

	cases := map[string]CreateOrderInput{
		"zero price":     {UserID: buyerID, ItemName: "x", Type: "link"},
		"negative price": {UserID: buyerID, ItemName: "x", Type: "link", Price: -5},
		"missing item":   {UserID: buyerID, Type: "link", Price: 5},
		"missing type":   {UserID: buyerID, ItemName: "x", Price: 5},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateOrder(ctx, in)
			assert.Equal(t, 400, apperror.StatusOf(err))
		})
	}
	assert.Empty(t, store.rows)

	_, err := s.CreateOrder(ctx, CreateOrderInput{UserEmail: "ghost@example.com", Type: "link", Price: -1})
	assert.Equal(t, 404, apperror.StatusOf(err), "unknown user is reported before bad fields")

	o, err := s.CreateOrder(ctx, CreateOrderInput{UserID: buyerID, ItemName: "x", Type: "link", Amount: 12.5})
	require.NoError(t, err)
	assert.Equal(t, 12.5, o.Price)
}

func TestUpdateOrderNotificationRule(t *testing.T) {
	cases := []struct {
		name  string
		from  model.OrderStatus
		to    model.OrderStatus
		email string
	}{
		{"pending to processing confirms payment", model.OrderPending, model.OrderProcessing, "OrderPaymentConfirmed"},
		{"processing to completed", model.OrderProcessing, model.OrderCompleted, "OrderCompleted"},
		{"pending to completed", model.OrderPending, model.OrderCompleted, "OrderCompleted"},
		{"processing to failed", model.OrderProcessing, model.OrderFailed, "OrderStatusUpdated"},
		{"failed back to processing", model.OrderFailed, model.OrderProcessing, "OrderStatusUpdated"},
		{"completed to pending sends nothing", model.OrderCompleted, model.OrderPending, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, store, n := newOrdersFixture(t)
			o := seedOrder(t, s, store, tc.from)
			switch tc.email {
			case "OrderStatusUpdated":
				n.On(tc.email, mock.Anything, mock.Anything, tc.from).Return(nil).Once()
			case "":
			default:
				n.On(tc.email, mock.Anything, mock.Anything).Return(nil).Once()
			}

			to := tc.to
			got, err := s.UpdateOrder(context.Background(), o.ID, OrderPatch{Status: &to})
			require.NoError(t, err)
			assert.Equal(t, tc.to, got.Status)
			assert.Equal(t, tc.to, store.rows[o.ID].Status)
			if tc.email == "" {
				n.AssertNotCalled(t, "OrderCompleted", mock.Anything, mock.Anything)
				n.AssertNotCalled(t, "OrderPaymentConfirmed", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUpdateOrderWithoutStatusChangeSendsNothing(t *testing.T) {
	s, store, _ := newOrdersFixture(t)
	o := seedOrder(t, s, store, model.OrderProcessing)
	same := model.OrderProcessing
	name := "Sponsored review"

	got, err := s.UpdateOrder(context.Background(), o.ID, OrderPatch{Status: &same, ItemName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, got.ItemName)
	assert.Equal(t, fixedNow, got.UpdatedAt)
}

func TestUpdateOrderNotificationFailureIsIsolated(t *testing.T) {
	s, store, n := newOrdersFixture(t)
	o := seedOrder(t, s, store, model.OrderPending)
	n.On("OrderPaymentConfirmed", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	to := model.OrderProcessing
	got, err := s.UpdateOrder(context.Background(), o.ID, OrderPatch{Status: &to})
	require.NoError(t, err)
	assert.Equal(t, model.OrderProcessing, got.Status)
	assert.Equal(t, model.OrderProcessing, store.rows[o.ID].Status)
}

func TestUpdateOrderErrors(t *testing.T) {
	s, store, _ := newOrdersFixture(t)
	o := seedOrder(t, s, store, model.OrderPending)

	bogus := model.OrderStatus("shipped")
	_, err := s.UpdateOrder(context.Background(), o.ID, OrderPatch{Status: &bogus})
	assert.Equal(t, 400, apperror.StatusOf(err))
	assert.Equal(t, model.OrderPending, store.rows[o.ID].Status)

	_, err = s.UpdateOrder(context.Background(), "missing", OrderPatch{})
	assert.Equal(t, 404, apperror.StatusOf(err))
}

func TestCompleteOrderAlwaysNotifies(t *testing.T) {
	s, store, n := newOrdersFixture(t)
	o := seedOrder(t, s, store, model.OrderCompleted)
	n.On("OrderCompleted", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.CompletionLink == "https://blog.example.com/p" && o.CompletionMessage == "live"
	})).Return(nil).Once()

	got, err := s.CompleteOrder(context.Background(), o.ID, "live", "https://blog.example.com/p")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, fixedNow, *got.CompletedAt)
}

func TestDeleteOrder(t *testing.T) {
	s, store, _ := newOrdersFixture(t)
	o := seedOrder(t, s, store, model.OrderPending)

	require.NoError(t, s.DeleteOrder(context.Background(), o.ID))
	assert.Equal(t, 404, apperror.StatusOf(s.DeleteOrder(context.Background(), o.ID)))
	_, err := s.GetOrderByID(context.Background(), o.ID)
	assert.Equal(t, 404, apperror.StatusOf(err))
}

func TestGetOrdersPagination(t *testing.T) {
	s, store, _ := newOrdersFixture(t)
	for i := 0; i < 5; i++ {
		seedOrder(t, s, store, model.OrderPending)
	}

	page, err := s.GetOrders(context.Background(), repository.OrderFilter{Page: repository.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)

	byEmail, err := s.GetOrdersByUserEmail(context.Background(), " ANN@example.com ", repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, 5, byEmail.Total)
	assert.Equal(t, 10, byEmail.Limit)

	_, err = s.GetOrders(context.Background(), repository.OrderFilter{Status: "bogus"})
	assert.Equal(t, 400, apperror.StatusOf(err))
}

func TestOrderLifecycleScenario(t *testing.T) {
	s, _, n := newOrdersFixture(t)
	ctx := context.Background()
	n.On("OrderPaymentConfirmed", mock.Anything, mock.Anything).Return(nil).Once()

	o, err := s.CreateOrder(ctx, CreateOrderInput{UserID: buyerID, ItemName: "Guest post", Price: 50, Type: "article"})
	require.NoError(t, err)
	to := model.OrderProcessing
	_, err = s.UpdateOrder(ctx, o.ID, OrderPatch{Status: &to})
	require.NoError(t, err)

	st, err := s.GetOrderStats(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 1, st.Processing)
	assert.Equal(t, 1, st.Total)
}

func TestGetOrderStats(t *testing.T) {
	s, store, _ := newOrdersFixture(t)
	prices := map[model.OrderStatus][]float64{
		model.OrderPending:    {10, 20},
		model.OrderProcessing: {30},
		model.OrderCompleted:  {40.5, 9.5},
		model.OrderFailed:     {5},
	}
	for status, ps := range prices {
		for _, p := range ps {
			o := seedOrder(t, s, store, status)
			row := store.rows[o.ID]
			row.Price = p
			store.rows[o.ID] = row
		}
	}
	store.rows["other"] = model.Order{ID: "other", UserID: "someone-else", Status: model.OrderPending, Price: 1000}

	st, err := s.GetOrderStats(context.Background(), buyerID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Pending)
	assert.Equal(t, 1, st.Processing)
	assert.Equal(t, 2, st.Completed)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, st.Pending+st.Processing+st.Completed+st.Failed, st.Total)
	assert.InDelta(t, 115.0, st.TotalRevenue, 1e-9)
	assert.InDelta(t, st.TotalRevenue, st.AverageOrderValue*float64(st.Total), 1e-9)

	all, err := s.GetOrderStats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, all.Total)

	empty, err := s.GetOrderStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.AverageOrderValue)
}
