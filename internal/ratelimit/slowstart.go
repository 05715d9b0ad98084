// Package ratelimit paces stage launches per testing flow.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRampInterval is how often the slow-start schedule raises the rate.
const DefaultRampInterval = time.Second

// SlowStartLimiter is a token bucket whose rate ramps from targetRate/10 up
// to targetRate. The schedule is driven by the monotonic clock on each Wait,
// so there is no background goroutine to stop. Safe for concurrent callers;
// waiters are served in close-to-FIFO order by the underlying bucket.
type SlowStartLimiter struct {
	target       int
	step         int
	base         int
	rampInterval time.Duration

	mu      sync.Mutex
	start   time.Time
	current int
	bucket  *rate.Limiter
}

// New creates a limiter for targetRate permits/sec. With slowStart off the
// limiter runs at targetRate from the first permit.
func New(targetRate int, slowStart bool) *SlowStartLimiter {
	return NewWithRampInterval(targetRate, slowStart, DefaultRampInterval)
}

// NewWithRampInterval is New with a custom ramp interval, used by tests.
func NewWithRampInterval(targetRate int, slowStart bool, rampInterval time.Duration) *SlowStartLimiter {
	if targetRate < 1 {
		targetRate = 1
	}
	base := targetRate
	if slowStart {
		base = targetRate / 10
		if base < 1 {
			base = 1
		}
	}
	return &SlowStartLimiter{
		target:       targetRate,
		step:         (targetRate + 9) / 10,
		base:         base,
		rampInterval: rampInterval,
		start:        time.Now(),
		current:      base,
		bucket:       rate.NewLimiter(rate.Limit(base), base),
	}
}

// rateAt is the scheduled rate after the given warm-up time.
func (l *SlowStartLimiter) rateAt(elapsed time.Duration) int {
	if elapsed < 0 {
		return l.base
	}
	steps := int(elapsed / l.rampInterval)
	scheduled := l.base + steps*l.step
	if scheduled > l.target {
		return l.target
	}
	return scheduled
}

// advance applies the current schedule to the bucket. Bucket capacity always
// equals the current rate.
func (l *SlowStartLimiter) advance() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == l.target {
		return
	}
	scheduled := l.rateAt(time.Since(l.start))
	if scheduled != l.current {
		l.current = scheduled
		l.bucket.SetLimit(rate.Limit(scheduled))
		l.bucket.SetBurst(scheduled)
	}
}

// CurrentRate returns the rate the limiter is currently enforcing.
func (l *SlowStartLimiter) CurrentRate() int {
	l.advance()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Wait blocks until one permit is available or ctx is cancelled.
func (l *SlowStartLimiter) Wait(ctx context.Context) error {
	l.advance()
	return l.bucket.Wait(ctx)
}
