// Package await provides the polling primitive that synchronizes the harness
// with asynchronous state changes on the target service.
package await

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is the pause between condition evaluations.
const DefaultPollInterval = 100 * time.Millisecond

// ErrDeadlineExceeded is returned when the condition never became true and
// no on-failure handler was installed.
var ErrDeadlineExceeded = errors.New("await: deadline exceeded")

// Condition is re-evaluated on every poll. It must be safe to call
// repeatedly; it usually reads the target service. A non-nil error aborts
// the wait and propagates to the caller unchanged.
type Condition func(ctx context.Context) (bool, error)

// Awaiter polls a condition until it holds or a deadline expires.
// Built with AtMost and chained setters, ended with Start:
//
//	err := await.AtMost(3 * time.Second).
//		Condition(orderHasItem).
//		OnTimeout(func() error { return errSlowService }).
//		Start(ctx)
type Awaiter struct {
	deadline  time.Duration
	interval  time.Duration
	condition Condition
	onTimeout func() error
}

// AtMost starts building an awaiter with the given total wait budget.
func AtMost(d time.Duration) *Awaiter {
	return &Awaiter{deadline: d, interval: DefaultPollInterval}
}

// PollEvery overrides the default 100ms polling interval.
func (a *Awaiter) PollEvery(interval time.Duration) *Awaiter {
	a.interval = interval
	return a
}

// Condition sets the predicate to poll.
func (a *Awaiter) Condition(cond Condition) *Awaiter {
	a.condition = cond
	return a
}

// OnTimeout installs a handler invoked exactly once when the deadline expires
// before the condition holds. The handler's error becomes Start's return
// value. The handler is never invoked on cancellation.
func (a *Awaiter) OnTimeout(handler func() error) *Awaiter {
	a.onTimeout = handler
	return a
}

// Start polls the condition until it returns true, the deadline expires, or
// ctx is cancelled. The condition is evaluated once immediately, then every
// poll interval. On cancellation Start returns ctx.Err() promptly without
// invoking the timeout handler.
func (a *Awaiter) Start(ctx context.Context) error {
	timeout := time.NewTimer(a.deadline)
	defer timeout.Stop()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := a.condition(ctx)
		if err != nil {
			// Condition errors on cancellation are reported as cancellation.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			if a.onTimeout != nil {
				return a.onTimeout()
			}
			return ErrDeadlineExceeded
		case <-ticker.C:
		}
	}
}
