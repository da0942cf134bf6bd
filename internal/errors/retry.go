package errors

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RetryConfig configures retry behavior for a single fetch.
type RetryConfig struct {
	MaxRetries   int           // Retries after the first attempt (0 = none)
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Exponential backoff factor
	Jitter       float64       // Random jitter factor (0-1)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Retrier retries transient failures with exponential backoff.
type Retrier struct {
	config RetryConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRetrier creates a new retrier.
func NewRetrier(config RetryConfig) *Retrier {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Retrier{
		config: config,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewDefaultRetrier creates a retrier with default configuration.
func NewDefaultRetrier() *Retrier {
	return NewRetrier(DefaultRetryConfig())
}

// RetryFunc is a function that can be retried.
type RetryFunc func(ctx context.Context) error

// RetryResult holds the result of a retry operation.
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
	Success   bool
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func (r *Retrier) Do(ctx context.Context, operation, url string, fn RetryFunc) *RetryResult {
	result := &RetryResult{}
	start := time.Now()
	delay := r.config.InitialDelay

	for attempt := 0; ; attempt++ {
		result.Attempts++

		err := fn(ctx)
		if err == nil {
			result.Success = true
			result.Duration = time.Since(start)
			return result
		}
		result.LastError = err

		if ctx.Err() != nil {
			result.LastError = NewCancelledError(url, operation)
			break
		}
		if attempt >= r.config.MaxRetries || !IsRetryable(err) {
			break
		}

		timer := time.NewTimer(r.jittered(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = NewCancelledError(url, operation)
			result.Duration = time.Since(start)
			return result
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	result.Duration = time.Since(start)
	return result
}

func (r *Retrier) jittered(d time.Duration) time.Duration {
	if r.config.Jitter <= 0 || d <= 0 {
		return d
	}
	r.mu.Lock()
	f := r.rng.Float64()
	r.mu.Unlock()

	span := r.config.Jitter * float64(d)
	return time.Duration(float64(d) + (f*2-1)*span)
}
