package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const initialBackoff = 100 * time.Millisecond

// Limiter wraps rate.Limiter with a backoff that Wait honors after a 429
type Limiter struct {
	limiter    *rate.Limiter
	name       string
	mu         sync.Mutex
	backoff    time.Duration
	maxWait    time.Duration
	pauseUntil time.Time
}

// NewLimiter creates a new rate limiter
// perMinute specifies the number of requests allowed per minute
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	rps := float64(perMinute) / 60.0
	// Allow burst of up to 5 requests or 1/10th of per-minute limit
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}
	return newLimiter(name, rate.Limit(rps), burst)
}

// NewIntervalLimiter allows one request per interval with no burst.
// A non-positive interval disables limiting.
func NewIntervalLimiter(name string, interval time.Duration) *Limiter {
	if interval <= 0 {
		return newLimiter(name, rate.Inf, 1)
	}
	return newLimiter(name, rate.Every(interval), 1)
}

func newLimiter(name string, limit rate.Limit, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
		backoff: initialBackoff,
		maxWait: 2 * time.Minute,
	}
}

// Wait blocks until any backoff pause has elapsed and a token is available,
// or the context is cancelled
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	pause := time.Until(l.pauseUntil)
	l.mu.Unlock()

	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	paused := time.Now().Before(l.pauseUntil)
	l.mu.Unlock()
	if paused {
		return false
	}
	return l.limiter.Allow()
}

// SignalRateLimited should be called when a 429 response is received.
// It doubles the backoff and pauses subsequent Waits for that long.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backoff *= 2
	if l.backoff > l.maxWait {
		l.backoff = l.maxWait
	}
	l.pauseUntil = time.Now().Add(l.backoff)
}

// ResetBackoff resets the backoff duration after successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
	l.pauseUntil = time.Time{}
}

// GetBackoff returns the current backoff duration
func (l *Limiter) GetBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
