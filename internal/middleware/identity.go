package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/model"
)

// Context keys populated by JWTAuth and OptionalAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
)

// UserID returns the authenticated user's id, or "" for guests.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

func Email(c echo.Context) string {
	s, _ := c.Get(ctxEmail).(string)
	return s
}

func Role(c echo.Context) model.Role {
	s, _ := c.Get(ctxRole).(string)
	return model.Role(s)
}

func IsAdmin(c echo.Context) bool { return Role(c) == model.RoleAdmin }

// subject identifies the caller for rate limiting: the user id when
// authenticated, "anon" otherwise.
func subject(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
