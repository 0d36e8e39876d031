// Package ratelimit provides the shared rate limiter for arena
// collectors. It combines a proactive token bucket with a reactive
// backoff fed by platform 429 responses, so collectors stay inside the
// platform's published limits and still respect an explicit Retry-After.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration for an arena.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// Limiter provides rate limiting for arena API requests.
// It uses a token bucket algorithm with optional backoff for 429 responses.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a rate limiter with the given configuration.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5.0
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimited.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return l.limiter.Wait(ctx)
}

// RecordRateLimited records a platform rate limit rejection and sets a
// backoff period. Call this when receiving a 429 response.
func (l *Limiter) RecordRateLimited(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	l.retryAt = time.Now().Add(retryAfter)
}

// Allow checks if a request can be made immediately without blocking.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}
