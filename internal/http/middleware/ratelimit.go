// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the vote rate limiter: one token bucket per voter key,
// held in process memory. A replica only sees its own share of a voter's
// traffic, so the configured rate is per replica.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-comment-rating/internal/i18n"
)

// maxRetryAfter caps the Retry-After hint for very slow refill rates.
const maxRetryAfter = time.Hour

type keyFunc func(*gin.Context) string

// KeyByVoter buckets requests by voter key, so an authenticated user and an
// anonymous caller on the same address ("user:abc" vs "anon:203.0.113.7")
// never share a bucket.
func KeyByVoter() keyFunc {
	return func(c *gin.Context) string {
		return VoterKeyFrom(c).String()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu        sync.Mutex
	buckets   map[string]*bucket
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter refills rps tokens per second up to burst (coerced to at
// least 1) for every key keyFn produces.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		keyFn:     keyFn,
		buckets:   make(map[string]*bucket),
		idleTTL:   10 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// limiter returns the bucket for key, creating it on first use. Once per
// idleTTL it first drops buckets idle for at least idleTTL; a full bucket
// carries no state worth keeping.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator recognised this request
// as a replay. Replays write nothing and are not charged.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler rejects a request with 429 too_many_requests when its bucket is
// empty. Retry-After tells the client when the next token is due.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		res := rl.limiter(rl.keyFn(c)).ReserveN(now, 1)
		if res.OK() && res.DelayFrom(now) == 0 {
			c.Next()
			return
		}
		wait := maxRetryAfter
		if res.OK() {
			wait = min(res.DelayFrom(now), maxRetryAfter)
		}
		res.CancelAt(now)

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		LoggerFrom(c).Debug().
			Str("voter_kind", string(VoterKeyFrom(c).Kind)).
			Dur("retry_after", wait).
			Msg("rate limited")
		AbortFailure(c, http.StatusTooManyRequests, "too_many_requests", i18n.MsgRateLimited)
	}
}
