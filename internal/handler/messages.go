package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/service"
)

type MessageService interface {
	CreateMessage(ctx context.Context, in service.CreateMessageInput) (*model.Message, error)
	AddMessageToThread(ctx context.Context, threadID string, r service.Reply) (*model.Message, error)
	GetMessageByID(ctx context.Context, id string) (*model.Message, error)
	GetMessages(ctx context.Context, f repository.MessageFilter) (*service.MessagePage, error)
	GetMyMessages(ctx context.Context, sub service.Subscriber) ([]model.Message, error)
	UpdateMessage(ctx context.Context, id string, p service.MessagePatch) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	Stream(ctx context.Context, sub service.Subscriber, hasCursor bool, emit service.EmitFunc) error
}

type MessageHandler struct {
	svc MessageService
}

func NewMessageHandler(svc MessageService) *MessageHandler { return &MessageHandler{svc: svc} }

type createMessageReq struct {
	ThreadID  string `json:"threadId"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	Subject   string `json:"subject" validate:"max=200"`
	Type      string `json:"type" validate:"max=50"`
	Message   string `json:"message" validate:"required"`
}

type replyReq struct {
	Message string `json:"message" validate:"required"`
}

type updateMessageReq struct {
	Subject  *string `json:"subject"`
	Type     *string `json:"type"`
	Approved *int    `json:"approved"`
}

func senderOf(c echo.Context) string {
	if middleware.IsAdmin(c) {
		return string(model.RoleAdmin)
	}
	return string(model.RoleUser)
}

func subscriberOf(c echo.Context) service.Subscriber {
	return service.Subscriber{UserID: middleware.UserID(c), Email: middleware.Email(c)}
}

func ownsMessage(c echo.Context, m *model.Message) bool {
	if middleware.IsAdmin(c) {
		return true
	}
	if m.UserID != "" && m.UserID == middleware.UserID(c) {
		return true
	}
	return m.UserEmail != "" && m.UserEmail == middleware.Email(c)
}

// CreateMessage opens a thread. Admins may open one addressed to any
// user; everyone else writes as themselves.
func (h *MessageHandler) CreateMessage(c echo.Context) error {
	var req createMessageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in := service.CreateMessageInput{
		ThreadID: req.ThreadID,
		Subject:  req.Subject,
		Type:     req.Type,
		Sender:   senderOf(c),
		Body:     req.Message,
	}
	if middleware.IsAdmin(c) && req.UserEmail != "" {
		in.UserID, in.UserEmail, in.Approved = req.UserID, req.UserEmail, 1
	} else {
		in.UserID, in.UserEmail = middleware.UserID(c), middleware.Email(c)
	}
	m, err := h.svc.CreateMessage(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "message sent", m)
}

// Reply appends to the thread of message :id.
func (h *MessageHandler) Reply(c echo.Context) error {
	var req replyReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	m, err := h.svc.GetMessageByID(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !ownsMessage(c, m) {
		return apperror.NotFound("message")
	}
	m, err = h.svc.AddMessageToThread(ctx, m.ThreadID, service.Reply{Sender: senderOf(c), Body: req.Message})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "reply added", m)
}

func (h *MessageHandler) GetMessage(c echo.Context) error {
	m, err := h.svc.GetMessageByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !ownsMessage(c, m) {
		return apperror.NotFound("message")
	}
	return respond(c, http.StatusOK, "", m)
}

// ListMessages is the admin inbox, filtered by userId, userEmail,
// type and approved.
func (h *MessageHandler) ListMessages(c echo.Context) error {
	f := repository.MessageFilter{
		UserID:    c.QueryParam("userId"),
		UserEmail: c.QueryParam("userEmail"),
		Type:      c.QueryParam("type"),
		Page:      pageParams(c),
	}
	if raw := c.QueryParam("approved"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || (v != 0 && v != 1) {
			return apperror.Validation(apperror.FieldError{Field: "approved", Message: "must be 0 or 1"})
		}
		f.Approved = &v
	}
	page, err := h.svc.GetMessages(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return respondPage(c, "", page.Messages, Pagination{
		Page: page.Page, Limit: page.Limit, Total: page.Total, TotalPages: page.TotalPages,
	})
}

func (h *MessageHandler) MyMessages(c echo.Context) error {
	msgs, err := h.svc.GetMyMessages(c.Request().Context(), subscriberOf(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", msgs)
}

func (h *MessageHandler) UpdateMessage(c echo.Context) error {
	var req updateMessageReq
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.UpdateMessage(c.Request().Context(), c.Param("id"), service.MessagePatch{
		Subject: req.Subject, Type: req.Type, Approved: req.Approved,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "message updated", m)
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	if err := h.svc.DeleteMessage(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "message deleted", nil)
}

// Stream serves Server-Sent Events until the client goes away. A
// lastSeen query parameter or Last-Event-ID header switches the
// service to the look-back window instead of replaying every entry.
func (h *MessageHandler) Stream(c echo.Context) error {
	hasCursor := c.QueryParam("lastSeen") != "" || c.Request().Header.Get("Last-Event-ID") != ""

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	return h.svc.Stream(c.Request().Context(), subscriberOf(c), hasCursor, func(event string, data any) error {
		return writeEvent(res, event, data)
	})
}

func writeEvent(res *echo.Response, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if e, ok := data.(model.StreamEntry); ok && e.Content.ID != "" {
		if _, err := fmt.Fprintf(res, "id: %s\n", e.Content.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
