package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ageniuscoder/caseline/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Logger logs one line per request and counts it.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"remote_addr", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logger.Error("request failed", append(attrs, "err", c.Errors.String())...)
			return
		}
		logger.Info("request completed", attrs...)
	}
}

const (
	limiterTTL   = 10 * time.Minute
	limiterSweep = time.Minute
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per client. Entries idle for longer than
// ttl are evicted by a sweep that runs at most once per limiterSweep.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       float64
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		ttl:   limiterTTL,
		now:   time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if now.Sub(p.lastSweep) >= limiterSweep {
		p.sweep(now)
	}
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

// sweep must be called with mu held.
func (p *limiterPool) sweep(now time.Time) {
	for k, e := range p.m {
		if now.Sub(e.lastSeen) > p.ttl {
			delete(p.m, k)
		}
	}
	p.lastSweep = now
}

// RateLimit applies a token bucket per client IP.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return rateLimit(newLimiterPool(rps, burst))
}

func rateLimit(pool *limiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pool.get(c.ClientIP()).Allow() {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
