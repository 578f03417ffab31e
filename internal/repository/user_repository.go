package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/linkmarket/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,nicename,email,password_hash,role,status,balance,email_verified," +
	"verify_token_hash,verify_expires_at,reset_token_hash,reset_expires_at,last_login_at,created_at,updated_at"

func scanUser(s scanner) (*model.User, error) {
	var (
		u                         model.User
		verifyHash, resetHash     sql.NullString
		verifyExp, resetExp, last sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Nicename, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &u.Balance, &u.EmailVerified,
		&verifyHash, &verifyExp, &resetHash, &resetExp, &last, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.VerifyTokenHash = stringPtr(verifyHash)
	u.VerifyExpiresAt = timePtr(verifyExp)
	u.ResetTokenHash = stringPtr(resetHash)
	u.ResetExpiresAt = timePtr(resetExp)
	u.LastLoginAt = timePtr(last)
	return &u, nil
}

// Create inserts a user. The email is normalized before insert.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,nicename,email,password_hash,role,status,balance,email_verified,verify_token_hash,verify_expires_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Nicename, u.Email, u.PasswordHash, u.Role, u.Status, u.Balance, u.EmailVerified,
		nullStringPtr(u.VerifyTokenHash), nullTime(u.VerifyExpiresAt), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// List returns one page of users, newest first, and the total count.
func (r *UserRepo) List(ctx context.Context, p Page) ([]model.User, int, error) {
	p = p.Normalize()
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?", p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users := make([]model.User, 0, p.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "UPDATE users SET last_login_at=?, updated_at=? WHERE id=?", at, at, id)
}

// UpdatePassword stores a new hash and clears any pending reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.exec(ctx,
		"UPDATE users SET password_hash=?, reset_token_hash=NULL, reset_expires_at=NULL, updated_at=? WHERE id=?",
		hash, at, id)
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, exp, at time.Time) error {
	return r.exec(ctx, "UPDATE users SET reset_token_hash=?, reset_expires_at=?, updated_at=? WHERE id=?",
		tokenHash, exp, at, id)
}

// GetByResetToken returns the user owning an unexpired reset token.
func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE reset_token_hash=? AND reset_expires_at>? LIMIT 1", tokenHash, now))
}

// VerifyEmail marks the owner of an unexpired verification token as
// verified and consumes the token.
func (r *UserRepo) VerifyEmail(ctx context.Context, tokenHash string, now time.Time) error {
	return r.exec(ctx,
		"UPDATE users SET email_verified=1, verify_token_hash=NULL, verify_expires_at=NULL, updated_at=? WHERE verify_token_hash=? AND verify_expires_at>?",
		now, tokenHash, now)
}

func (r *UserRepo) UpdateStatus(ctx context.Context, id string, status model.AccountStatus, at time.Time) error {
	return r.exec(ctx, "UPDATE users SET status=?, updated_at=? WHERE id=?", status, at, id)
}

// AdjustBalance adds delta (which may be negative) to the balance.
func (r *UserRepo) AdjustBalance(ctx context.Context, id string, delta float64, at time.Time) error {
	return r.exec(ctx, "UPDATE users SET balance=balance+?, updated_at=? WHERE id=?", delta, at, id)
}
