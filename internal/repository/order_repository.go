package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/linkmarket/internal/model"
)

// OrderFilter narrows GetOrders.  Zero values are ignored; From and To
// bound created_at inclusively.
type OrderFilter struct {
	UserID    string
	UserEmail string
	Status    model.OrderStatus
	Type      string
	From      *time.Time
	To        *time.Time
	Page      Page
}

type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

const orderColumns = "id,user_id,user_name,user_email,item_name,price,type,features,article_text,file,message," +
	"status,completion_message,completion_link,created_at,submitted_at,completed_at,updated_at"

func scanOrder(s scanner) (*model.Order, error) {
	var (
		o                                 model.Order
		features, file                    []byte
		article, msg, complMsg, complLink sql.NullString
		submitted, completed              sql.NullTime
	)
	err := s.Scan(&o.ID, &o.UserID, &o.UserName, &o.UserEmail, &o.ItemName, &o.Price, &o.Type, &features,
		&article, &file, &msg, &o.Status, &complMsg, &complLink, &o.CreatedAt, &submitted, &completed, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := fromJSON(features, &o.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if len(file) > 0 && string(file) != "null" {
		o.File = &model.OrderFile{}
		if err := fromJSON(file, o.File); err != nil {
			return nil, fmt.Errorf("decode file: %w", err)
		}
	}
	o.ArticleText = article.String
	o.Message = msg.String
	o.CompletionMessage = complMsg.String
	o.CompletionLink = complLink.String
	o.SubmittedAt = timePtr(submitted)
	o.CompletedAt = timePtr(completed)
	return &o, nil
}

func orderArgs(o *model.Order) ([]any, error) {
	features, err := toJSON(o.Features)
	if err != nil {
		return nil, err
	}
	var file []byte
	if o.File != nil {
		if file, err = toJSON(o.File); err != nil {
			return nil, err
		}
	}
	return []any{o.UserID, o.UserName, o.UserEmail, o.ItemName, o.Price, o.Type, features,
		nullString(o.ArticleText), file, nullString(o.Message), o.Status, nullString(o.CompletionMessage),
		nullString(o.CompletionLink), o.CreatedAt, nullTime(o.SubmittedAt), nullTime(o.CompletedAt), o.UpdatedAt}, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO orders (id,user_id,user_name,user_email,item_name,price,type,features,article_text,file,message,"+
			"status,completion_message,completion_link,created_at,submitted_at,completed_at,updated_at) "+
			"VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		append([]any{o.ID}, args...)...)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return scanOrder(r.DB.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=? LIMIT 1", id))
}

// Update overwrites every mutable column of the row.  Concurrent writers
// race; the last write wins.
func (r *OrderRepo) Update(ctx context.Context, o *model.Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE orders SET user_id=?,user_name=?,user_email=?,item_name=?,price=?,type=?,features=?,article_text=?,"+
			"file=?,message=?,status=?,completion_message=?,completion_link=?,created_at=?,submitted_at=?,"+
			"completed_at=?,updated_at=? WHERE id=?",
		append(args, o.ID)...)
	return err
}

func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM orders WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (f OrderFilter) where() *where {
	w := &where{}
	if f.UserID != "" {
		w.add("user_id=?", f.UserID)
	}
	if f.UserEmail != "" {
		w.add("user_email=?", f.UserEmail)
	}
	if f.Status != "" {
		w.add("status=?", f.Status)
	}
	if f.Type != "" {
		w.add("type=?", f.Type)
	}
	if f.From != nil {
		w.add("created_at>=?", *f.From)
	}
	if f.To != nil {
		w.add("created_at<=?", *f.To)
	}
	return w
}

// List returns the filtered page, newest first, and the total match count.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int, error) {
	p := f.Page.Normalize()
	w := f.where()
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders"+w.String()+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(w.args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	orders := make([]model.Order, 0, p.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

// StatusTotals is the per-status count and price sum used by stats.
type StatusTotals struct {
	Status model.OrderStatus
	Count  int
	Sum    float64
}

// Totals groups orders by status, optionally restricted to one user.
func (r *OrderRepo) Totals(ctx context.Context, userID string) ([]StatusTotals, error) {
	w := &where{}
	if userID != "" {
		w.add("user_id=?", userID)
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT status, COUNT(*), COALESCE(SUM(price),0) FROM orders"+w.String()+" GROUP BY status", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusTotals
	for rows.Next() {
		var t StatusTotals
		if err := rows.Scan(&t.Status, &t.Count, &t.Sum); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
