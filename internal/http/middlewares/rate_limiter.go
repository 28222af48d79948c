package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/casehub/internal/throttle"
	"github.com/gin-gonic/gin"
)

type RateLimiter struct {
	limiter throttle.Limiter
	name    string
	limit   int
	window  time.Duration
}

// NewRateLimiter allows limit requests per key per window. name namespaces the
// keys so two limits can share one backend.
func NewRateLimiter(limiter throttle.Limiter, name string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		name:    name,
		limit:   limit,
		window:  window,
	}
}

// Middleware returns a gin.HandlerFunc that enforces rate limit for a derived key
func (rl *RateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		res, err := rl.limiter.Hit(c.Request.Context(), "rl:"+rl.name+":"+key, rl.limit, rl.window)
		if err != nil {
			// fail open; a limiter outage must not take auth down with it
			slog.Default().WarnContext(c.Request.Context(), "rate_limiter_unavailable", "limit", rl.name, "err", err)
			c.Next()
			return
		}

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			abort(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

// KeyByMobile keys on the "mobile" field of a JSON body and restores the body
// for the handler. Requests without one fall back to the client IP.
func KeyByMobile(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		// replay what was read, then the read error, so the handler's bind
		// reports it (e.g. 413 for an oversized body)
		c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), errReader{err}))
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var probe struct {
		Mobile string `json:"mobile"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}

	mobile := strings.TrimSpace(probe.Mobile)
	if mobile == "" {
		return ""
	}
	return "mobile:" + mobile
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func clientIP(c *gin.Context) string {
	// Gin’s ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	// Normalize ipv6 zone in a defensive manner
	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
