package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/notify"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/utils"
)

type UserStore interface {
	UserLookup
	Create(ctx context.Context, u *model.User) error
	List(ctx context.Context, p repository.Page) ([]model.User, int, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, exp, at time.Time) error
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	VerifyEmail(ctx context.Context, tokenHash string, now time.Time) error
	UpdateStatus(ctx context.Context, id string, status model.AccountStatus, at time.Time) error
	AdjustBalance(ctx context.Context, id string, delta float64, at time.Time) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
)

type AuthOptions struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Session is the token pair handed out on login, register and refresh.
type Session struct {
	User    *model.User
	Access  utils.AccessToken
	Refresh utils.OpaqueToken
}

type RegisterInput struct {
	Nicename string
	Email    string
	Password string
}

type UserPage struct {
	Users      []model.User
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

type Auth struct {
	users  UserStore
	tokens TokenStore
	notify notify.Notifier
	opts   AuthOptions
	log    *zap.Logger
	now    Clock
}

func NewAuth(users UserStore, tokens TokenStore, n notify.Notifier, opts AuthOptions, log *zap.Logger) *Auth {
	return &Auth{users: users, tokens: tokens, notify: n, opts: opts, log: log, now: utcNow}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func checkPassword(field, pw string) *apperror.AppError {
	if len(pw) < utils.MinPasswordLength {
		return apperror.Validation(apperror.FieldError{Field: field, Message: "must be at least 8 characters"})
	}
	return nil
}

// issue signs an access token and stores a fresh refresh token.
func (s *Auth) issue(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.opts.JWTSecret, u.ID, u.Email, string(u.Role), s.opts.AccessTTL)
	if err != nil {
		return nil, apperror.Internal("issue access token", err)
	}
	refresh, err := utils.NewOpaqueToken(s.opts.RefreshTTL)
	if err != nil {
		return nil, apperror.Internal("issue refresh token", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, refresh.Hash, refresh.Exp); err != nil {
		return nil, storeErr(s.log, "refresh token", "store", err)
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

// Register creates an active user account, returns a session and
// sends the verification email.
func (s *Auth) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	var fields []apperror.FieldError
	if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, apperror.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(in.Password) < utils.MinPasswordLength {
		fields = append(fields, apperror.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields...)
	}
	nicename := strings.TrimSpace(in.Nicename)
	if nicename == "" {
		nicename, _, _ = strings.Cut(email, "@")
	}

	hash, err := utils.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}
	verify, err := utils.NewOpaqueToken(verifyTokenTTL)
	if err != nil {
		return nil, apperror.Internal("issue verification token", err)
	}
	now := s.now()
	u := &model.User{
		ID:              utils.NewID(),
		Nicename:        nicename,
		Email:           email,
		PasswordHash:    hash,
		Role:            model.RoleUser,
		Status:          model.AccountActive,
		VerifyTokenHash: &verify.Hash,
		VerifyExpiresAt: &verify.Exp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, storeErr(s.log, "user", "create", err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID))
	bestEffort(s.log, notify.KindEmailVerification, u.ID, s.notify.EmailVerification(ctx, *u, verify.Raw))
	return s.issue(ctx, u)
}

func (s *Auth) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, storeErr(s.log, "user", "load", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if !u.IsActive() {
		return nil, apperror.Unauthorized("account is inactive")
	}
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		s.log.Warn("update last login failed", zap.String("user_id", u.ID), zap.Error(err))
	} else {
		u.LastLoginAt = &now
	}
	return s.issue(ctx, u)
}

func (s *Auth) sessionUser(ctx context.Context, rawRefresh string) (*model.User, string, error) {
	raw := strings.TrimSpace(rawRefresh)
	if raw == "" {
		return nil, "", apperror.BadRequest("refreshToken is required")
	}
	hash := utils.HashToken(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperror.Unauthorized("invalid refresh token")
		}
		return nil, "", storeErr(s.log, "refresh token", "load", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperror.Unauthorized("invalid refresh token")
		}
		return nil, "", storeErr(s.log, "user", "load", err)
	}
	if !u.IsActive() {
		return nil, "", apperror.Unauthorized("account is inactive")
	}
	return u, hash, nil
}

// Refresh rotates the refresh token and issues a new pair.
func (s *Auth) Refresh(ctx context.Context, rawRefresh string) (*Session, error) {
	u, hash, err := s.sessionUser(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.RevokeByHash(ctx, hash)
	if err != nil {
		return nil, storeErr(s.log, "refresh token", "revoke", err)
	}
	if !revoked {
		return nil, apperror.Unauthorized("invalid refresh token")
	}
	return s.issue(ctx, u)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (s *Auth) RefreshAccess(ctx context.Context, rawRefresh string) (utils.AccessToken, error) {
	u, _, err := s.sessionUser(ctx, rawRefresh)
	if err != nil {
		return utils.AccessToken{}, err
	}
	access, err := utils.NewAccessToken(s.opts.JWTSecret, u.ID, u.Email, string(u.Role), s.opts.AccessTTL)
	if err != nil {
		return utils.AccessToken{}, apperror.Internal("issue access token", err)
	}
	return access, nil
}

// Logout revokes one refresh token when given, otherwise every token
// of userID.
func (s *Auth) Logout(ctx context.Context, userID, rawRefresh string) error {
	if raw := strings.TrimSpace(rawRefresh); raw != "" {
		hash := utils.HashToken(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.Unauthorized("invalid refresh token")
			}
			return storeErr(s.log, "refresh token", "load", err)
		}
		if _, err := s.tokens.RevokeByHash(ctx, hash); err != nil {
			return storeErr(s.log, "refresh token", "revoke", err)
		}
		return nil
	}
	if userID == "" {
		return apperror.BadRequest("provide an access token or refreshToken")
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return storeErr(s.log, "refresh token", "revoke", err)
	}
	return nil
}

func (s *Auth) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr(s.log, "user", "load", err)
	}
	return u, nil
}

// ChangePassword replaces the password and signs out every session.
func (s *Auth) ChangePassword(ctx context.Context, userID, current, next string) error {
	if ae := checkPassword("newPassword", next); ae != nil {
		return ae
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return storeErr(s.log, "user", "load", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperror.Unauthorized("current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.opts.BcryptCost)
	if err != nil {
		return apperror.Internal("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, s.now()); err != nil {
		return storeErr(s.log, "user", "update", err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		s.log.Warn("revoke sessions after password change failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

func (s *Auth) VerifyEmail(ctx context.Context, rawToken string) error {
	raw := strings.TrimSpace(rawToken)
	if raw == "" {
		return apperror.BadRequest("token is required")
	}
	if err := s.users.VerifyEmail(ctx, utils.HashToken(raw), s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.BadRequest("invalid or expired verification token")
		}
		return storeErr(s.log, "user", "verify", err)
	}
	return nil
}

// RequestPasswordReset emails a reset link. Unknown addresses succeed
// silently so the endpoint cannot be used to probe accounts.
func (s *Auth) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storeErr(s.log, "user", "load", err)
	}
	tok, err := utils.NewOpaqueToken(resetTokenTTL)
	if err != nil {
		return apperror.Internal("issue reset token", err)
	}
	if err := s.users.SetResetToken(ctx, u.ID, tok.Hash, tok.Exp, s.now()); err != nil {
		return storeErr(s.log, "user", "update", err)
	}
	bestEffort(s.log, notify.KindPasswordReset, u.ID, s.notify.PasswordReset(ctx, *u, tok.Raw))
	return nil
}

func (s *Auth) ResetPassword(ctx context.Context, rawToken, next string) error {
	if ae := checkPassword("newPassword", next); ae != nil {
		return ae
	}
	now := s.now()
	u, err := s.users.GetByResetToken(ctx, utils.HashToken(strings.TrimSpace(rawToken)), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.BadRequest("invalid or expired reset token")
		}
		return storeErr(s.log, "user", "load", err)
	}
	hash, err := utils.HashPassword(next, s.opts.BcryptCost)
	if err != nil {
		return apperror.Internal("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, now); err != nil {
		return storeErr(s.log, "user", "update", err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		s.log.Warn("revoke sessions after password reset failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

func (s *Auth) ListUsers(ctx context.Context, p repository.Page) (*UserPage, error) {
	p = p.Normalize()
	users, total, err := s.users.List(ctx, p)
	if err != nil {
		return nil, storeErr(s.log, "users", "list", err)
	}
	return &UserPage{Users: users, Page: p.Page, Limit: p.Limit, Total: total, TotalPages: p.TotalPages(total)}, nil
}

// UpdateUserStatus activates or deactivates an account. Deactivation
// also revokes its refresh tokens.
func (s *Auth) UpdateUserStatus(ctx context.Context, id string, status model.AccountStatus) (*model.User, error) {
	if status != model.AccountActive && status != model.AccountInactive {
		return nil, apperror.BadRequest("invalid account status: " + string(status))
	}
	if err := s.users.UpdateStatus(ctx, id, status, s.now()); err != nil {
		return nil, storeErr(s.log, "user", "update", err)
	}
	if status == model.AccountInactive {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			s.log.Warn("revoke sessions of inactive user failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	return s.Me(ctx, id)
}

func (s *Auth) AdjustBalance(ctx context.Context, id string, delta float64) (*model.User, error) {
	if delta == 0 {
		return nil, apperror.BadRequest("amount must not be zero")
	}
	if err := s.users.AdjustBalance(ctx, id, delta, s.now()); err != nil {
		return nil, storeErr(s.log, "user", "update", err)
	}
	s.log.Info("balance adjusted", zap.String("user_id", id), zap.Float64("delta", delta))
	return s.Me(ctx, id)
}

// TokenPurger deletes dead refresh tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeTokens drops expired and revoked refresh tokens every interval
// until ctx ends. Tokens are kept for a day past expiry.
func PurgeTokens(ctx context.Context, p TokenPurger, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.PurgeExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("purge refresh tokens failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				log.Debug("purged refresh tokens", zap.Int64("rows", n))
			}
		}
	}
}
