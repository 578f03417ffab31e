package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/model"
)

type userStatusReq struct {
	Status model.AccountStatus `json:"status" validate:"required,oneof=active inactive"`
}

type balanceReq struct {
	Amount float64 `json:"amount" validate:"required"`
}

// ListUsers is admin only.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	page, err := h.svc.ListUsers(c.Request().Context(), pageParams(c))
	if err != nil {
		return err
	}
	return respondPage(c, "", page.Users, Pagination{
		Page: page.Page, Limit: page.Limit, Total: page.Total, TotalPages: page.TotalPages,
	})
}

func (h *AuthHandler) UpdateUserStatus(c echo.Context) error {
	var req userStatusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.UpdateUserStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user status updated", u)
}

// AdjustBalance adds a signed amount to the user's balance.
func (h *AuthHandler) AdjustBalance(c echo.Context) error {
	var req balanceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svc.AdjustBalance(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "balance updated", u)
}
