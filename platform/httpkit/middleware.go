// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"leadline_backend/platform/logger"
	"leadline_backend/platform/ratelimit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		log.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS when serving TLS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(c *gin.Context) string

// KeyByClientIP keys rate limits on the client IP.
func KeyByClientIP(c *gin.Context) string { return c.ClientIP() }

// KeyByAPIKey keys rate limits on the X-API-Key header, falling back to IP.
func KeyByAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.ClientIP()
}

// RateLimit returns middleware enforcing the injected sliding-window limiter.
// Violations get a 429 with limit/remaining/reset metadata and Retry-After.
func RateLimit(limiter ratelimit.Limiter, keyFn KeyFunc, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// A broken limiter store must not take the API down.
			log.Error("rate limiter store failure", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.Unix(), 10))

		if !res.Allowed {
			log.RateLimitExceeded(key, c.Request.URL.Path)
			retryAfter := time.Until(res.Reset).Seconds()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(int(retryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Details: gin.H{
					"limit":     res.Limit,
					"remaining": res.Remaining,
					"reset":     res.Reset.Unix(),
				},
			})
			return
		}

		c.Next()
	}
}

// IPRateLimiter manages per-IP token-bucket limiters for the global
// engine-level throttle. The pluggable sliding-window limiter in
// platform/ratelimit handles per-route API limits.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		rate:  r,
		burst: burst,
		log:   log,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	limiter, exists := i.limiters.Load(ip)
	if !exists {
		newLimiter := rate.NewLimiter(i.rate, i.burst)
		i.limiters.Store(ip, newLimiter)
		return newLimiter
	}
	return limiter.(*rate.Limiter)
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := i.getLimiter(ip)

		if !limiter.Allow() {
			i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many requests",
			})
			return
		}

		c.Next()
	}
}
