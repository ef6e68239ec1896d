package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"compliance-monitor/internal/monitor"
)

// reviewRateLimit and reviewRateBurst bound how fast one caller can hit
// /compliance/review. The endpoint is cheap (resolve + pure evaluation, no
// outbound platform call) so the limiter exists to blunt an accidental retry
// storm, not to protect a slow backend.
const (
	reviewRateLimit = rate.Limit(20)
	reviewRateBurst = 50
	limiterIdleTTL  = 10 * time.Minute
)

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	callerLimiters   = make(map[string]*callerLimiter)
	callerLimitersMu sync.Mutex
)

// limiterFor returns the rate.Limiter for ip, creating one on first sight.
// Idle entries are swept by the background evictor below instead of wiping
// the whole map, so a caller mid-burst never loses its accumulated burst
// budget just because some other caller's entry happened to be due for
// cleanup.
func limiterFor(ip string) *rate.Limiter {
	callerLimitersMu.Lock()
	defer callerLimitersMu.Unlock()

	entry, ok := callerLimiters[ip]
	if !ok {
		entry = &callerLimiter{limiter: rate.NewLimiter(reviewRateLimit, reviewRateBurst)}
		callerLimiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func evictIdleLimiters() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	callerLimitersMu.Lock()
	defer callerLimitersMu.Unlock()
	for ip, entry := range callerLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(callerLimiters, ip)
		}
	}
}

func init() {
	go func() {
		ticker := time.NewTicker(limiterIdleTTL)
		defer ticker.Stop()
		for range ticker.C {
			evictIdleLimiters()
		}
	}()
}

// CORSMiddleware allows a browser dashboard on another origin to call the
// review endpoint. There is no cookie auth and no Authorization header
// anywhere on this API, so the allowed headers and methods are kept to what
// handler.go's routes actually serve.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware tags every request with a time-sortable ULID, the same
// ID scheme internal/anchor uses for events, so a request ID and a log
// line's timestamp agree on ordering even across handlers.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Set("RequestID", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimitMiddleware caps review calls per source IP at reviewRateLimit;
// the review endpoint runs the evaluator synchronously and must not be used
// as a free-form compute sink.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiterFor(ip).Allow() {
			log.Printf("rate limit exceeded for %s", ip)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, slow down"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// TimeoutMiddleware bounds how long a single request may run. The handler
// chain executes in its own goroutine so ctx.Done() can still win the race
// and respond even when c.Next() never returns control on its own.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		recovered := make(chan any, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					recovered <- p
				}
			}()
			c.Next()
			close(done)
		}()

		select {
		case p := <-recovered:
			log.Printf("panic handling %s %s: %v", c.Request.Method, c.Request.URL.Path, p)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
		case <-done:
		case <-ctx.Done():
			log.Printf("request timed out after %s: %s %s", timeout, c.Request.Method, c.Request.URL.Path)
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "request timeout"})
			c.Abort()
		}
	}
}

// RequestLogger logs every request with timing and status, and records it
// to metrics when metrics is non-nil.
func RequestLogger(metrics *monitor.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		requestID := c.GetString("RequestID")

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if metrics != nil {
			metrics.APIRequests.WithLabelValues(path, strconv.Itoa(statusCode)).Inc()
			metrics.APILatency.WithLabelValues(path).Observe(latency.Seconds())
		}

		log.Printf("[API] %s | %s %s | %d | %v | %s", requestID, method, path, statusCode, latency, c.ClientIP())
	}
}
