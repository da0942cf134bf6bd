// Package ratelimit provides the politeness throttle and robots.txt rules
// for the mirror.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a fixed delay between page fetches.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	delay   time.Duration
}

// NewLimiter creates a limiter that spaces calls to Wait by delay. A zero
// delay disables throttling.
func NewLimiter(delay time.Duration) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(limitFor(delay), 1),
		delay:   delay,
	}
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

// Wait blocks until the next fetch is allowed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a fetch may happen now, consuming the slot if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Delay returns the current delay.
func (l *Limiter) Delay() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.delay
}

// SetDelay changes the delay.
func (l *Limiter) SetDelay(delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = delay
	l.limiter.SetLimit(limitFor(delay))
}

// RaiseTo increases the delay to at least delay, as requested by a
// robots.txt Crawl-delay.
func (l *Limiter) RaiseTo(delay time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if delay <= l.delay {
		return false
	}
	l.delay = delay
	l.limiter.SetLimit(limitFor(delay))
	return true
}
