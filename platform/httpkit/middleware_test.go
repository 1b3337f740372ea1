package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadline_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func newThrottledEngine(burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(rate.Every(time.Hour), burst, logger.New("development"))

	engine := gin.New()
	engine.Use(limiter.RateLimit())
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func getFrom(t *testing.T, engine *gin.Engine, remoteAddr string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec.Code
}

func TestIPRateLimiterThrottlesAfterBurst(t *testing.T) {
	engine := newThrottledEngine(2)

	for i := 0; i < 2; i++ {
		if code := getFrom(t, engine, "10.0.0.1:4000"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := getFrom(t, engine, "10.0.0.1:4000"); code != http.StatusTooManyRequests {
		t.Fatalf("request past burst: status = %d, want 429", code)
	}
}

func TestIPRateLimiterIsPerIP(t *testing.T) {
	engine := newThrottledEngine(1)

	if code := getFrom(t, engine, "10.0.0.1:4000"); code != http.StatusOK {
		t.Fatalf("first IP: status = %d, want 200", code)
	}
	if code := getFrom(t, engine, "10.0.0.1:4000"); code != http.StatusTooManyRequests {
		t.Fatalf("first IP past burst: status = %d, want 429", code)
	}

	// A different client keeps its own bucket.
	if code := getFrom(t, engine, "10.0.0.2:4000"); code != http.StatusOK {
		t.Fatalf("second IP: status = %d, want 200", code)
	}
}
