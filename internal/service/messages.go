package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/utils"
)

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	GetByThreadID(ctx context.Context, threadID string) (*model.Message, error)
	Update(ctx context.Context, m *model.Message) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.MessageFilter) ([]model.Message, int, error)
	ListForUser(ctx context.Context, userID, email string) ([]model.Message, error)
}

const defaultMessageType = "support"

type CreateMessageInput struct {
	ThreadID  string
	UserID    string
	UserEmail string
	Subject   string
	Type      string
	Sender    string
	Body      string
	Approved  int
}

// Reply is one entry appended to an existing thread.
type Reply struct {
	Sender string
	Body   string
}

type MessagePatch struct {
	Subject  *string
	Type     *string
	Approved *int
}

type MessagePage struct {
	Messages   []model.Message
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// StreamOptions controls the polling cadence of Stream.
type StreamOptions struct {
	PollInterval time.Duration
	Lookback     time.Duration
}

// Subscriber identifies the owner whose threads a stream follows.
type Subscriber struct {
	UserID string
	Email  string
}

// EmitFunc writes one named event to the client. An error ends the
// stream.
type EmitFunc func(event string, data any) error

type Messages struct {
	store  MessageStore
	log    *zap.Logger
	now    Clock
	stream StreamOptions
}

func NewMessages(store MessageStore, opts StreamOptions, log *zap.Logger) *Messages {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 10 * time.Second
	}
	return &Messages{store: store, log: log, now: utcNow, stream: opts}
}

func (s *Messages) newEntry(sender, body string, at time.Time) model.MessageContent {
	return model.MessageContent{ID: utils.NewEntryID(), Sender: sender, Body: body, Date: at}
}

// CreateMessage opens a new thread holding its first entry. A thread
// id is generated when the caller supplies none.
func (s *Messages) CreateMessage(ctx context.Context, in CreateMessageInput) (*model.Message, error) {
	body := strings.TrimSpace(in.Body)
	email := strings.ToLower(strings.TrimSpace(in.UserEmail))
	var fields []apperror.FieldError
	if body == "" {
		fields = append(fields, apperror.FieldError{Field: "message", Message: "is required"})
	}
	if email == "" {
		fields = append(fields, apperror.FieldError{Field: "userEmail", Message: "is required"})
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields...)
	}
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		threadID = utils.NewThreadID()
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = defaultMessageType
	}
	sender := in.Sender
	if sender == "" {
		sender = email
	}

	now := s.now()
	m := &model.Message{
		ID:        utils.NewID(),
		ThreadID:  threadID,
		UserID:    in.UserID,
		UserEmail: email,
		Subject:   strings.TrimSpace(in.Subject),
		Type:      typ,
		Approved:  in.Approved,
		Contents:  []model.MessageContent{s.newEntry(sender, body, now)},
		Date:      now,
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, storeErr(s.log, "message thread", "create", err)
	}
	return m, nil
}

// AddMessageToThread appends one entry, touches the thread date and
// marks the thread approved. Concurrent appends race and the last
// write wins.
func (s *Messages) AddMessageToThread(ctx context.Context, threadID string, r Reply) (*model.Message, error) {
	body := strings.TrimSpace(r.Body)
	if body == "" {
		return nil, apperror.Validation(apperror.FieldError{Field: "message", Message: "is required"})
	}
	m, err := s.store.GetByThreadID(ctx, threadID)
	if err != nil {
		return nil, storeErr(s.log, "message thread", "load", err)
	}
	now := s.now()
	if now.Before(m.Date) {
		now = m.Date
	}
	m.Contents = append(m.Contents, s.newEntry(r.Sender, body, now))
	m.Date = now
	m.Approved = 1
	if err := s.store.Update(ctx, m); err != nil {
		return nil, storeErr(s.log, "message thread", "update", err)
	}
	return m, nil
}

func (s *Messages) GetMessageByID(ctx context.Context, id string) (*model.Message, error) {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "message", "load", err)
	}
	return m, nil
}

func (s *Messages) GetMessages(ctx context.Context, f repository.MessageFilter) (*MessagePage, error) {
	f.Page = f.Page.Normalize()
	msgs, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, storeErr(s.log, "messages", "list", err)
	}
	return &MessagePage{
		Messages:   msgs,
		Page:       f.Page.Page,
		Limit:      f.Page.Limit,
		Total:      total,
		TotalPages: f.Page.TotalPages(total),
	}, nil
}

func (s *Messages) GetMyMessages(ctx context.Context, sub Subscriber) ([]model.Message, error) {
	msgs, err := s.store.ListForUser(ctx, sub.UserID, strings.ToLower(sub.Email))
	if err != nil {
		return nil, storeErr(s.log, "messages", "list", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func (s *Messages) UpdateMessage(ctx context.Context, id string, p MessagePatch) (*model.Message, error) {
	if p.Approved != nil && *p.Approved != 0 && *p.Approved != 1 {
		return nil, apperror.BadRequest("approved must be 0 or 1")
	}
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(s.log, "message", "load", err)
	}
	if p.Subject != nil {
		m.Subject = *p.Subject
	}
	if p.Type != nil && strings.TrimSpace(*p.Type) != "" {
		m.Type = strings.TrimSpace(*p.Type)
	}
	if p.Approved != nil {
		m.Approved = *p.Approved
	}
	if err := s.store.Update(ctx, m); err != nil {
		return nil, storeErr(s.log, "message", "update", err)
	}
	return m, nil
}

func (s *Messages) DeleteMessage(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr(s.log, "message", "delete", err)
	}
	return nil
}

// Stream pushes the subscriber's thread entries until ctx ends. It
// emits "connected" first, then on every poll re-reads all threads
// and emits each entry dated after now minus the look-back window.
// Without a cursor every entry is emitted on every poll. Delivery is
// at least once; clients de-duplicate by entry id.
func (s *Messages) Stream(ctx context.Context, sub Subscriber, hasCursor bool, emit EmitFunc) error {
	if err := emit("connected", map[string]any{"userId": sub.UserID, "timestamp": s.now()}); err != nil {
		return err
	}
	ticker := time.NewTicker(s.stream.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			entries, err := s.recentEntries(ctx, sub, hasCursor)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("message stream poll failed", zap.String("user_id", sub.UserID), zap.Error(err))
				continue
			}
			for _, e := range entries {
				if err := emit("message", e); err != nil {
					return err
				}
			}
		}
	}
}

func (s *Messages) recentEntries(ctx context.Context, sub Subscriber, hasCursor bool) ([]model.StreamEntry, error) {
	msgs, err := s.store.ListForUser(ctx, sub.UserID, strings.ToLower(sub.Email))
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-s.stream.Lookback)
	var out []model.StreamEntry
	for _, m := range msgs {
		for _, c := range m.Contents {
			if hasCursor && !c.Date.After(cutoff) {
				continue
			}
			out = append(out, model.StreamEntry{ThreadID: m.ThreadID, Type: m.Type, Content: c})
		}
	}
	return out, nil
}
