package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/config"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, role model.Role) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, "user-1", "buyer@example.com", string(role), time.Minute)
	require.NoError(t, err)
	return at.Token
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func identityHandler(seen *[3]string) echo.HandlerFunc {
	return func(c echo.Context) error {
		*seen = [3]string{UserID(c), string(Role(c)), Email(c)}
		return c.NoContent(http.StatusNoContent)
	}
}

func TestJWTAuthHeaderAndQuery(t *testing.T) {
	tok := token(t, model.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c, _ := newContext(req)
	var seen [3]string
	require.NoError(t, JWTAuth(secret)(identityHandler(&seen))(c))
	assert.Equal(t, [3]string{"user-1", "user", "buyer@example.com"}, seen)

	c, _ = newContext(httptest.NewRequest(http.MethodGet, "/api/messages/stream?token="+tok, nil))
	seen = [3]string{}
	require.NoError(t, JWTAuth(secret)(identityHandler(&seen))(c))
	assert.Equal(t, "user-1", seen[0])
}

func TestJWTAuthRejects(t *testing.T) {
	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer nope",
		"wrong secret": "",
	}
	other, err := utils.NewAccessToken("other-secret", "user-1", "a@b.co", "user", time.Minute)
	require.NoError(t, err)
	cases["wrong secret"] = "Bearer " + other.Token

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			c, _ := newContext(req)
			called := false
			err := JWTAuth(secret)(func(echo.Context) error { called = true; return nil })(c)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, apperror.StatusOf(err))
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	var seen [3]string
	c, _ := newContext(httptest.NewRequest(http.MethodPost, "/api/site-submissions", nil))
	require.NoError(t, OptionalAuth(secret)(identityHandler(&seen))(c))
	assert.Equal(t, "", seen[0])

	req := httptest.NewRequest(http.MethodPost, "/api/site-submissions", nil)
	req.Header.Set("Authorization", "Bearer broken")
	c, _ = newContext(req)
	require.NoError(t, OptionalAuth(secret)(identityHandler(&seen))(c))
	assert.Equal(t, "", seen[0])

	req = httptest.NewRequest(http.MethodPost, "/api/site-submissions", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, model.RoleAdmin))
	c, _ = newContext(req)
	require.NoError(t, OptionalAuth(secret)(identityHandler(&seen))(c))
	assert.Equal(t, [3]string{"user-1", "admin", "buyer@example.com"}, seen)
}

func TestRequireRole(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(ctxRole, "user")
	err := RequireRole(model.RoleAdmin)(ok)(c)
	assert.Equal(t, http.StatusForbidden, apperror.StatusOf(err))

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(ctxRole, "admin")
	require.NoError(t, RequireRole(model.RoleUser, model.RoleAdmin)(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, _ = newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, RequireRole(model.RoleUser)(ok)(c), "guests have no role")
	assert.False(t, IsAdmin(c))
}

func TestBuildRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/1", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	c, _ := newContext(req)
	c.SetPath("/api/orders/:id")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.5",
		"user":       "rl:user:anon",
		"route":      "rl:route:GET /api/orders/:id",
		"ip_user":    "rl:ip:10.0.0.5:user:anon",
		"user_route": "rl:user:anon:route:GET /api/orders/:id",
		"":           "rl:ip:10.0.0.5:user:anon:route:GET /api/orders/:id",
	}
	for strategy, want := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, buildRateKey(cfg, c), strategy)
	}

	c.Set(ctxUserID, "user-9")
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:user-9", buildRateKey(cfg, c))
}

func TestParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]any{int64(1), int64(4), int64(0)})
	require.True(t, ok)
	assert.True(t, allowed)
	assert.Equal(t, int64(4), remaining)
	assert.Equal(t, int64(0), retry)

	allowed, _, retry, ok = parseBucketResult([]any{int64(0), int64(0), "1500"})
	require.True(t, ok)
	assert.False(t, allowed)
	assert.Equal(t, 2, retryAfterSeconds(retry))

	_, _, _, ok = parseBucketResult("nope")
	assert.False(t, ok)
}

func TestDisabledMiddlewarePassThrough(t *testing.T) {
	log := zap.NewNop()
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	require.NoError(t, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, log)(h)(c))
	require.NoError(t, NewRedisCache(config.CacheConfig{Enabled: true}, nil, log)(h)(c))
	require.NoError(t, InvalidateCache(config.CacheConfig{Enabled: false}, nil, log)(h)(c))
	assert.Equal(t, "okokok", rec.Body.String())
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"success":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok, "header length beyond payload")
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.truncated())
	_, _ = cw.Write([]byte("defg"))
	assert.True(t, cw.truncated())
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdefg", rec.Body.String())
}

func TestCacheKeyDistinguishesPaths(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache"}
	keyFor := func(target string) string {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, target, nil))
		c.SetPath("/api/services/:id")
		return cacheKeyFrom(cfg, c)
	}
	a, b := keyFor("/api/services/1"), keyFor("/api/services/2")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "cache:"))
	assert.Equal(t, a, keyFor("/api/services/1"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/api/orders/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/api/boom", func(c echo.Context) error { return apperror.Internal("database error", nil) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/7", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/api/orders/:id", first["route"])
	assert.Equal(t, int64(http.StatusNoContent), first["status"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
}
