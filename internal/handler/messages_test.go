package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/service"
)

type mockMessages struct{ mock.Mock }

func (m *mockMessages) CreateMessage(ctx context.Context, in service.CreateMessageInput) (*model.Message, error) {
	args := m.Called(ctx, in)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessages) AddMessageToThread(ctx context.Context, threadID string, r service.Reply) (*model.Message, error) {
	args := m.Called(ctx, threadID, r)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessages) GetMessageByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessages) GetMessages(ctx context.Context, f repository.MessageFilter) (*service.MessagePage, error) {
	args := m.Called(ctx, f)
	p, _ := args.Get(0).(*service.MessagePage)
	return p, args.Error(1)
}

func (m *mockMessages) GetMyMessages(ctx context.Context, sub service.Subscriber) ([]model.Message, error) {
	args := m.Called(ctx, sub)
	msgs, _ := args.Get(0).([]model.Message)
	return msgs, args.Error(1)
}

func (m *mockMessages) UpdateMessage(ctx context.Context, id string, p service.MessagePatch) (*model.Message, error) {
	args := m.Called(ctx, id, p)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessages) DeleteMessage(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockMessages) Stream(ctx context.Context, sub service.Subscriber, hasCursor bool, emit service.EmitFunc) error {
	return m.Called(ctx, sub, hasCursor, emit).Error(0)
}

func messageRoutes(svc MessageService) *echo.Echo {
	e := newEcho()
	h := NewMessageHandler(svc)
	g := e.Group("/api/messages", authed())
	g.POST("", h.CreateMessage)
	g.GET("", h.ListMessages)
	g.GET("/me", h.MyMessages)
	g.GET("/stream", h.Stream)
	g.GET("/:id", h.GetMessage)
	g.POST("/:id/reply", h.Reply)
	return e
}

func TestCreateMessageAsUser(t *testing.T) {
	svc := new(mockMessages)
	svc.On("CreateMessage", mock.Anything, service.CreateMessageInput{
		UserID: buyer.id, UserEmail: buyer.email, Subject: "Invoice", Sender: "user", Body: "Can I get an invoice?",
	}).Return(&model.Message{ID: "m-1", ThreadID: "t-1"}, nil)

	rec := do(t, messageRoutes(svc), http.MethodPost, "/api/messages",
		`{"subject":"Invoice","message":"Can I get an invoice?","userEmail":"spoof@example.com"}`, &buyer)
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreateMessageRequiresBody(t *testing.T) {
	rec := do(t, messageRoutes(new(mockMessages)), http.MethodPost, "/api/messages", `{"subject":"hi"}`, &buyer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplyChecksOwnership(t *testing.T) {
	svc := new(mockMessages)
	thread := &model.Message{ID: "m-1", ThreadID: "t-1", UserID: buyer.id, UserEmail: buyer.email}
	svc.On("GetMessageByID", mock.Anything, "m-1").Return(thread, nil)
	svc.On("AddMessageToThread", mock.Anything, "t-1", service.Reply{Sender: "admin", Body: "Sent!"}).
		Return(&model.Message{ID: "m-1", ThreadID: "t-1", Approved: 1}, nil)
	e := messageRoutes(svc)

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodPost, "/api/messages/m-1/reply", `{"message":"hi"}`, &other).Code)
	rec := do(t, e, http.MethodPost, "/api/messages/m-1/reply", `{"message":"Sent!"}`, &admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, dataAs[model.Message](t, decode(t, rec)).Approved)
	svc.AssertNumberOfCalls(t, "AddMessageToThread", 1)
}

func TestListMessagesApprovedFilter(t *testing.T) {
	svc := new(mockMessages)
	svc.On("GetMessages", mock.Anything, mock.MatchedBy(func(f repository.MessageFilter) bool {
		return f.Approved != nil && *f.Approved == 0 && f.Type == "support"
	})).Return(&service.MessagePage{Messages: []model.Message{}, Page: 1, Limit: 10}, nil)
	e := messageRoutes(svc)

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodGet, "/api/messages?approved=0&type=support", "", &admin).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, e, http.MethodGet, "/api/messages?approved=2", "", &admin).Code)
}

func TestStreamWritesServerSentEvents(t *testing.T) {
	svc := new(mockMessages)
	entry := model.StreamEntry{ThreadID: "t-1", Type: "support", Content: model.MessageContent{
		ID: "1790000000000000001", Sender: "admin", Body: "hello", Date: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}}
	svc.On("Stream", mock.Anything, service.Subscriber{UserID: buyer.id, Email: buyer.email}, true, mock.Anything).
		Run(func(args mock.Arguments) {
			emit := args.Get(3).(service.EmitFunc)
			require.NoError(t, emit("connected", map[string]string{"userId": buyer.id}))
			require.NoError(t, emit("message", entry))
		}).Return(nil)

	at := strings.TrimPrefix(bearerFor(t, buyer), "Bearer ")
	req := httptest.NewRequest(http.MethodGet, "/api/messages/stream?lastSeen=2026-05-04T11:59:00Z&token="+at, nil)
	rec := httptest.NewRecorder()
	messageRoutes(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	connected := strings.Index(body, "event: connected\n")
	message := strings.Index(body, "event: message\n")
	require.GreaterOrEqual(t, connected, 0)
	assert.Greater(t, message, connected)
	assert.Contains(t, body, "id: 1790000000000000001\n")
	assert.Contains(t, body, `"body":"hello"`)
	svc.AssertExpectations(t)
}

func TestStreamWithoutCursor(t *testing.T) {
	svc := new(mockMessages)
	svc.On("Stream", mock.Anything, mock.Anything, false, mock.Anything).Return(nil)
	rec := do(t, messageRoutes(svc), http.MethodGet, "/api/messages/stream", "", &buyer)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
