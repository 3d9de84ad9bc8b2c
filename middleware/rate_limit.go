package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// windowCounter tracks requests from one IP inside the current window
type windowCounter struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter caps mutating requests per IP with a sliding window. It
// protects the trade and wallet endpoints from runaway clients.
type RateLimiter struct {
	mu           sync.Mutex
	counters     map[string]*windowCounter
	maxRequests  int
	windowPeriod time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
}

// NewRateLimiter creates a new rate limiter
// maxRequests: maximum requests allowed within the window
// windowPeriod: time window for counting requests
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	rl := &RateLimiter{
		counters:     make(map[string]*windowCounter),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
		stop:         make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// startCleanup periodically removes expired entries until Stop is called
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, counter := range rl.counters {
				if now.Sub(counter.FirstAt) > rl.windowPeriod {
					delete(rl.counters, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow records one request and reports whether it fits in the window.
func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	counter, exists := rl.counters[ip]

	if !exists || now.Sub(counter.FirstAt) > rl.windowPeriod {
		rl.counters[ip] = &windowCounter{Count: 1, FirstAt: now}
		return true, 0
	}

	counter.Count++
	if counter.Count > rl.maxRequests {
		return false, rl.windowPeriod - now.Sub(counter.FirstAt)
	}
	return true, 0
}

// Middleware enforces the limit on non-GET requests.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		allowed, retryAfter := rl.allow(c.ClientIP())
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please slow down",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
