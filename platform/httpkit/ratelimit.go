package httpkit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"solar_portal_backend/platform/logger"
)

const (
	defaultPerMinute = 10
	// buckets idle this long are forgotten once the table grows past maxBuckets
	bucketIdle = 10 * time.Minute
	maxBuckets = 10_000
)

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
	log     *logger.Logger
}

// NewPerMinuteLimiter allows perMinute requests per IP per minute, all of
// which may arrive at once. Non-positive values fall back to 10.
func NewPerMinuteLimiter(perMinute int, log *logger.Logger) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
		log:     log,
	}
}

// Allow reports whether a request from ip may proceed and spends a token if so.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.evictIdle(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) evictIdle(now time.Time) {
	for ip, b := range l.buckets {
		if now.Sub(b.seen) > bucketIdle {
			delete(l.buckets, ip)
		}
	}
}

// RateLimit is the gin middleware form of Allow.
func (l *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.Allow(ip) {
			c.Next()
			return
		}
		if l.log != nil {
			l.log.RateLimitExceeded(ip, c.Request.URL.Path)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
	}
}
