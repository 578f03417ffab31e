package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/linkmarket/internal/model"
)

type MessageFilter struct {
	UserID    string
	UserEmail string
	Type      string
	Approved  *int
	Page      Page
}

type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

const messageColumns = "id,thread_id,user_id,user_email,subject,type,approved,contents,date,created_at"

func scanMessage(s scanner) (*model.Message, error) {
	var (
		m               model.Message
		userID, subject sql.NullString
		contents        []byte
	)
	err := s.Scan(&m.ID, &m.ThreadID, &userID, &m.UserEmail, &subject, &m.Type, &m.Approved, &contents, &m.Date, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := fromJSON(contents, &m.Contents); err != nil {
		return nil, fmt.Errorf("decode contents: %w", err)
	}
	m.UserID = userID.String
	m.Subject = subject.String
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	contents, err := toJSON(m.Contents)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		m.ID, m.ThreadID, nullString(m.UserID), m.UserEmail, nullString(m.Subject), m.Type, m.Approved, contents, m.Date, m.CreatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*model.Message, error) {
	return scanMessage(r.DB.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id=? LIMIT 1", id))
}

func (r *MessageRepo) GetByThreadID(ctx context.Context, threadID string) (*model.Message, error) {
	return scanMessage(r.DB.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE thread_id=? LIMIT 1", threadID))
}

// Update rewrites the whole contents array.  There is no row lock:
// two concurrent appends to one thread resolve as last write wins.
func (r *MessageRepo) Update(ctx context.Context, m *model.Message) error {
	contents, err := toJSON(m.Contents)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE messages SET subject=?, type=?, approved=?, contents=?, date=? WHERE id=?",
		nullString(m.Subject), m.Type, m.Approved, contents, m.Date, m.ID)
	return err
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM messages WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepo) List(ctx context.Context, f MessageFilter) ([]model.Message, int, error) {
	p := f.Page.Normalize()
	w := &where{}
	if f.UserID != "" {
		w.add("user_id=?", f.UserID)
	}
	if f.UserEmail != "" {
		w.add("user_email=?", f.UserEmail)
	}
	if f.Type != "" {
		w.add("type=?", f.Type)
	}
	if f.Approved != nil {
		w.add("approved=?", *f.Approved)
	}
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages"+w.String()+" ORDER BY date DESC LIMIT ? OFFSET ?",
		append(w.args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMessages(rows, total)
}

// ListForUser returns every thread owned by the user id or email,
// most recently touched first.
func (r *MessageRepo) ListForUser(ctx context.Context, userID, email string) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE user_id=? OR user_email=? ORDER BY date DESC", userID, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs, _, err := collectMessages(rows, 0)
	return msgs, err
}

func collectMessages(rows *sql.Rows, total int) ([]model.Message, int, error) {
	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *m)
	}
	return out, total, rows.Err()
}
