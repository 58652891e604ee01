package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const initialBackoff = 100 * time.Millisecond

// Limiter paces requests to one upstream and cools down after it reports throttling
type Limiter struct {
	limiter *rate.Limiter
	name    string
	mu      sync.Mutex
	backoff time.Duration
	maxWait time.Duration
	until   time.Time
}

// NewLimiter creates a new rate limiter.
// perMinute is the number of requests allowed per minute; zero or less disables pacing.
func NewLimiter(name string, perMinute int) *Limiter {
	l := &Limiter{
		name:    name,
		backoff: initialBackoff,
		maxWait: 2 * time.Minute,
	}
	if perMinute <= 0 {
		l.limiter = rate.NewLimiter(rate.Inf, 1)
		return l
	}

	// Burst of 1/10th of the per-minute limit, between 1 and 5
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}
	l.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
	return l
}

// Wait blocks until any cooldown has passed and a token is available
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	pause := time.Until(l.until)
	l.mu.Unlock()

	if pause > 0 {
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	cooling := time.Now().Before(l.until)
	l.mu.Unlock()
	if cooling {
		return false
	}
	return l.limiter.Allow()
}

// SignalRateLimited should be called when the upstream answers 429.
// The next Wait pauses for the current backoff, which then doubles.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.until = time.Now().Add(l.backoff)
	l.backoff *= 2
	if l.backoff > l.maxWait {
		l.backoff = l.maxWait
	}
}

// ResetBackoff clears the cooldown after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
	l.until = time.Time{}
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
