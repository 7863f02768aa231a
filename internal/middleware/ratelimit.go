package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// RateLimiter keeps one token bucket per client IP. Least recently seen
// clients are evicted once maxTrackedClients is reached.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows rps requests per second per client with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	clients, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: clients,
	}
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.clients.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.clients.Add(key, l)
	return l
}

// Allow reports whether a request from key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	return r.limiter(key).Allow()
}

// Middleware rejects requests over the limit with 429. A non-positive rate disables limiting.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.limit <= 0 {
			c.Next()
			return
		}
		if !r.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":           "RATE_LIMITED",
				"message":        "too many requests",
				"correlation_id": c.GetString(CorrelationIDKey),
			})
			return
		}
		c.Next()
	}
}
