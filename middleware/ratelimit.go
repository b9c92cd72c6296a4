package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// idleBucketTTL is how long an untouched client bucket is kept.
const idleBucketTTL = 10 * time.Minute

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter is a per-client-IP token bucket.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64 // tokens per second
	bucketSize float64
	lastSweep  time.Time
	now        func() time.Time
}

// NewRateLimiter allows rate requests per second per IP with bursts of up
// to bucketSize.
func NewRateLimiter(rate, bucketSize float64) *RateLimiter {
	if bucketSize < 1 {
		bucketSize = 1
	}
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		bucketSize: bucketSize,
		now:        time.Now,
	}
}

// Allow takes one token from ip's bucket.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.bucketSize, lastRefill: now}
		rl.buckets[ip] = b
	}
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(rl.bucketSize, b.tokens+elapsed*rl.rate)
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle long enough to be full again. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleBucketTTL {
		return
	}
	rl.lastSweep = now
	for ip, b := range rl.buckets {
		if now.Sub(b.lastRefill) >= idleBucketTTL {
			delete(rl.buckets, ip)
		}
	}
}

// RateLimit rejects requests over the limit with 429.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
