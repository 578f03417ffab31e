package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/utils"
)

// bearer pulls the raw access token from the Authorization header or,
// for EventSource clients that cannot set headers, the token query
// parameter.
func bearer(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.QueryParam("token"))
}

func setIdentity(c echo.Context, cl *utils.Claims) {
	c.Set(ctxUserID, cl.Subject)
	c.Set(ctxRole, cl.Role)
	c.Set(ctxEmail, cl.Email)
}

// JWTAuth rejects requests without a valid access token and stores the
// token's subject, role and email in the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return apperror.Unauthorized("missing bearer token")
			}
			cl, err := utils.ParseAccessToken(secret, raw)
			if err != nil || cl.Subject == "" {
				return apperror.Unauthorized("invalid token")
			}
			setIdentity(c, cl)
			return next(c)
		}
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through as a guest.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := bearer(c); raw != "" {
				if cl, err := utils.ParseAccessToken(secret, raw); err == nil && cl.Subject != "" {
					setIdentity(c, cl)
				}
			}
			return next(c)
		}
	}
}
