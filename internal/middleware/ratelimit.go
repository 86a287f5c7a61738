package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
)

// WindowCounter counts hits per client in fixed windows. database.Cache
// implements it on redis so that limits hold across replicas.
type WindowCounter interface {
	IncrementWindow(ctx context.Context, client string, window time.Duration, now time.Time) (int64, error)
}

// RateLimiter allows a fixed number of requests per client per window.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counter  WindowCounter
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

type visitor struct {
	windowStart time.Time
	count       int
}

// NewRateLimiter keeps counters in memory unless counter is non-nil.
func NewRateLimiter(limit int, window time.Duration, counter WindowCounter, m *metrics.Metrics, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		counter:  counter,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.allow(c.Request.Context(), c.ClientIP()) {
			c.Next()
			return
		}

		rl.metrics.RateLimitRejectInc()
		c.Header("Retry-After", formatSeconds(rl.window))
		utils.AbortWithError(c, apperror.New(apperror.KindRateLimited, apperror.CodeRateLimited, "rate limit exceeded"))
	}
}

func (rl *RateLimiter) allow(ctx context.Context, client string) bool {
	if rl.counter != nil {
		count, err := rl.counter.IncrementWindow(ctx, client, rl.window, rl.now())
		if err == nil {
			return count <= int64(rl.limit)
		}
		rl.logger.WithError(err).Warn("Shared rate limit store unavailable, using local counters")
	}

	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[client]
	if !ok || now.Sub(v.windowStart) >= rl.window {
		rl.visitors[client] = &visitor{windowStart: now, count: 1}
		return true
	}
	if v.count >= rl.limit {
		return false
	}
	v.count++
	return true
}

// Cleanup drops idle visitors until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, v := range rl.visitors {
		if now.Sub(v.windowStart) > 5*rl.window {
			delete(rl.visitors, client)
		}
	}
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
