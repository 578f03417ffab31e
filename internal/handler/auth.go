package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/service"
	"github.com/iliyamo/linkmarket/internal/utils"
)

// AuthService is the part of service.Auth the HTTP layer uses.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Refresh(ctx context.Context, rawRefresh string) (*service.Session, error)
	RefreshAccess(ctx context.Context, rawRefresh string) (utils.AccessToken, error)
	Logout(ctx context.Context, userID, rawRefresh string) error
	Me(ctx context.Context, userID string) (*model.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	VerifyEmail(ctx context.Context, rawToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, next string) error
	ListUsers(ctx context.Context, p repository.Page) (*service.UserPage, error)
	UpdateUserStatus(ctx context.Context, id string, status model.AccountStatus) (*model.User, error)
	AdjustBalance(ctx context.Context, id string, delta float64) (*model.User, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

type registerReq struct {
	Nicename string `json:"nicename" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

type tokenReq struct {
	Token string `json:"token" validate:"required"`
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type sessionResp struct {
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func toSession(s *service.Session) sessionResp {
	return sessionResp{
		User:    s.User,
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
	}
}

// Register creates an account and logs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.svc.Register(c.Request().Context(), service.RegisterInput{
		Nicename: req.Nicename, Email: req.Email, Password: req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "registration successful", toSession(s))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "login successful", toSession(s))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	s, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "token refreshed", toSession(s))
}

// RefreshAccess issues a new access token without rotating.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	at, err := h.svc.RefreshAccess(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "access token issued", echo.Map{
		"access": tokenPart{Token: at.Token, Expires: at.Exp},
	})
}

// Logout revokes the given refresh token, or every session of the
// authenticated user when none is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Logout(c.Request().Context(), middleware.UserID(c), req.RefreshToken); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.svc.Me(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", u)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "password changed, please log in again", nil)
}

// VerifyEmail accepts the token from the JSON body or ?token=.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := tokenReq{Token: c.QueryParam("token")}
	if req.Token == "" {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	if err := h.svc.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "email verified", nil)
}

// ForgotPassword always answers the same way so callers cannot probe
// which addresses are registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "if the address is registered, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "password has been reset", nil)
}
