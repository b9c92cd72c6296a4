package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seo-forecaster/backend/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 3)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "burst request %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per IP")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"), "refilled one token")
	assert.False(t, rl.Allow("10.0.0.1"))

	t.Run("idle buckets are swept", func(t *testing.T) {
		now = now.Add(idleBucketTTL)
		rl.Allow("10.0.0.3")
		assert.Len(t, rl.buckets, 1)
	})

	t.Run("middleware", func(t *testing.T) {
		r := gin.New()
		limiter := NewRateLimiter(0, 1)
		r.Use(limiter.RateLimit())
		r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/health", nil).Code)
		w := serve(r, http.MethodGet, "/api/health", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "Rate limit exceeded")
	})
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred"}`, w.Body.String())
}

func TestStats(t *testing.T) {
	stats, err := logging.NewStatistics(t.TempDir(), false)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Stats(stats, zap.NewNop()))
	r.GET("/api/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/api/ok", nil)
	serve(r, http.MethodGet, "/api/missing", nil)
	serve(r, http.MethodGet, "/metrics", nil)

	snap := stats.Snapshot()
	assert.Equal(t, 2, snap["totalRequests"], "only /api requests count")
	assert.Equal(t, 50.0, snap["errorRate"])
	assert.Equal(t, 1, snap["uniqueVisitors24h"])
}

func TestCORS(t *testing.T) {
	handler := func(c *gin.Context) { c.Status(http.StatusOK) }

	t.Run("wildcard", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS([]string{"*"}))
		r.GET("/api/health", handler)
		w := serve(r, http.MethodGet, "/api/health", map[string]string{"Origin": "https://app.example.com"})
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS([]string{"https://app.example.com"}))
		r.GET("/api/health", handler)

		w := serve(r, http.MethodGet, "/api/health", map[string]string{"Origin": "https://app.example.com"})
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

		w = serve(r, http.MethodGet, "/api/health", map[string]string{"Origin": "https://evil.example.com"})
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS([]string{"*"}))
		r.POST("/api/lists", handler)
		w := serve(r, http.MethodOptions, "/api/lists", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
