package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-api/internal/config"
	"ai-tutor-api/internal/domain/entity"
	"ai-tutor-api/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthedEngine(t *testing.T, extra ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(Auth(AuthConfig{Secret: "test-secret", Issuer: "ai-tutor", SkipPaths: DefaultSkipPaths}))
	r.Use(extra...)
	r.GET("/v1/me/credits", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := utils.NewJWTManager("test-secret", "ai-tutor").GenerateToken(userID, role, "access", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuth(t *testing.T) {
	r := newAuthedEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil)
	req.Header.Set("Authorization", bearer(t, "stu-1", "student"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"stu-1","role":"student"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := newAuthedEngine(t, RequireAdmin())

	req := httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil)
	req.Header.Set("Authorization", bearer(t, "stu-1", string(entity.UserRoleStudent)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil)
	req.Header.Set("Authorization", bearer(t, "root", string(entity.UserRoleAdmin)))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type countingLimiter struct {
	keys  []string
	limit int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.keys = append(l.keys, key)
	return len(l.keys) <= limit, nil
}

func TestRateLimit_PerAccount(t *testing.T) {
	limiter := &countingLimiter{}
	r := newAuthedEngine(t, RateLimit(RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}, limiter))
	auth := bearer(t, "stu-1", "student")

	codes := make([]int, 0, 3)
	var lastHeader http.Header
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		lastHeader = w.Header()
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", lastHeader.Get(RateLimitLimitHeader))
	assert.Equal(t, "60", lastHeader.Get("Retry-After"))
	assert.Equal(t, "ratelimit:account:stu-1:/v1/me/credits", limiter.keys[0])
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	r := newAuthedEngine(t, RateLimit(RateLimitConfig{Enabled: true, Requests: 1}, limiter))

	req := httptest.NewRequest(http.MethodGet, "/v1/me/credits", nil)
	req.Header.Set("Authorization", bearer(t, "stu-1", "student"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	cases := map[string]bool{
		"req-123_abc.1":         true,
		"":                      false,
		"bad id\r\nX-Evil: 1":   false,
		strings.Repeat("a", 65): false,
	}
	for in, kept := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if in != "" {
			req.Header.Set(RequestIDHeader, in)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(RequestIDHeader)
		assert.Equal(t, got, w.Body.String())
		if kept {
			assert.Equal(t, in, got)
		} else {
			assert.NotEqual(t, in, got)
			assert.Len(t, got, 36)
		}
	}
}

func TestCORS_CredentialsOnlyForExplicitOrigins(t *testing.T) {
	preflight := func(origins []string) http.Header {
		r := gin.New()
		r.Use(CORS(config.CORSConfig{AllowedOrigins: origins}))
		r.POST("/v1/chapters/:id/ask", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/v1/chapters/ch-1/ask", nil)
		req.Header.Set("Origin", "https://learn.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Header()
	}

	open := preflight(nil)
	assert.Equal(t, "*", open.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, open.Get("Access-Control-Allow-Credentials"))

	strict := preflight([]string{"https://learn.example.com"})
	assert.Equal(t, "https://learn.example.com", strict.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", strict.Get("Access-Control-Allow-Credentials"))
}
