package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultCleanupTTL      = 10 * time.Minute
)

// KeyFunc picks the bucket a request is counted against
type KeyFunc func(c *gin.Context) string

// ByClientIP buckets requests by client address. c.ClientIP honours
// X-Forwarded-For only for proxies set with engine.SetTrustedProxies.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUser buckets authenticated requests by user id and falls back to the client IP
func ByUser(c *gin.Context) string {
	if id := c.GetString(ctxUserIDString); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter keeps one token bucket per key. Idle buckets expire from the
// cache after the TTL.
type RateLimiter struct {
	buckets *gocache.Cache
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	key     KeyFunc
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per key
func NewRateLimiter(requestsPerMinute int, key KeyFunc) *RateLimiter {
	return NewRateLimiterWithTTL(requestsPerMinute, defaultCleanupTTL, key)
}

// NewRateLimiterWithTTL creates a limiter whose idle buckets expire after ttl
func NewRateLimiterWithTTL(requestsPerMinute int, ttl time.Duration, key KeyFunc) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if ttl <= 0 {
		ttl = defaultCleanupTTL
	}
	if key == nil {
		key = ByClientIP
	}
	cleanup := defaultCleanupInterval
	if ttl < cleanup {
		cleanup = ttl
	}
	return &RateLimiter{
		buckets: gocache.New(ttl, cleanup),
		rate:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:   requestsPerMinute,
		ttl:     ttl,
		key:     key,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		l := v.(*rate.Limiter)
		rl.buckets.Set(key, l, rl.ttl)
		return l
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	if err := rl.buckets.Add(key, l, rl.ttl); err != nil {
		if v, ok := rl.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Limit returns the middleware
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(rl.key(c)).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entities.ErrorResponse{
				Code:    "RATE_LIMIT_EXCEEDED",
				Message: "Too many requests. Please try again later.",
				Details: map[string]interface{}{"request_id": c.GetString(ctxRequestID)},
			})
			return
		}
		c.Next()
	}
}

// Size returns the number of live buckets
func (rl *RateLimiter) Size() int {
	return rl.buckets.ItemCount()
}
