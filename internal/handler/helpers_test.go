package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/utils"
	"github.com/iliyamo/linkmarket/internal/validation"
)

const testSecret = "handler-secret"

type caller struct {
	id, email string
	role      model.Role
}

var (
	buyer = caller{id: "2b7c3f1e-1111-4a8e-9a51-000000000001", email: "buyer@example.com", role: model.RoleUser}
	other = caller{id: "2b7c3f1e-2222-4a8e-9a51-000000000002", email: "other@example.com", role: model.RoleUser}
	admin = caller{id: "2b7c3f1e-3333-4a8e-9a51-000000000003", email: "admin@example.com", role: model.RoleAdmin}
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	e.HTTPErrorHandler = NewErrorHandler(zap.NewNop(), false)
	return e
}

// authed is the JWTAuth middleware the router installs.
func authed() echo.MiddlewareFunc { return middleware.JWTAuth(testSecret) }

func bearerFor(t *testing.T, u caller) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, u.id, u.email, string(u.role), time.Minute)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

func do(t *testing.T, e *echo.Echo, method, target, body string, as *caller) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if as != nil {
		req.Header.Set(echo.HeaderAuthorization, bearerFor(t, *as))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type decoded struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	Data       json.RawMessage   `json:"data"`
	Pagination *Pagination       `json:"pagination"`
	Errors     []json.RawMessage `json:"errors"`
	Details    string            `json:"details"`
	Timestamp  time.Time         `json:"timestamp"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decoded {
	t.Helper()
	var d decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d), rec.Body.String())
	return d
}

func dataAs[T any](t *testing.T, d decoded) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(d.Data, &v))
	return v
}

func ptr[T any](v T) *T { return &v }
