package stage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
	"github.com/tinkersphere/bombardier/internal/model"
)

// OrderAbandoned leaves the cart untouched long enough for the target's
// abandoned-cart process to run, then audits its verdict: an interacted cart
// must stay Collecting, an untouched one must be Discarded. When the order
// is properly discarded the test ends neutrally; there is nothing left to
// buy.
type OrderAbandoned struct {
	deps Deps

	// Probability of exercising the scenario at all; otherwise a no-op.
	Probability float64

	// IdleDuration is how long the cart is left untouched.
	IdleDuration time.Duration

	// BucketRefreshTimeout bounds the wait for a new audit record.
	BucketRefreshTimeout time.Duration

	// DiscardTimeout bounds the wait for the Discarded transition.
	DiscardTimeout time.Duration

	randFloat func() float64
}

// NewOrderAbandoned creates the stage with production timings.
func NewOrderAbandoned(deps Deps) *OrderAbandoned {
	return &OrderAbandoned{
		deps:                 deps,
		Probability:          0.5,
		IdleDuration:         120 * time.Second,
		BucketRefreshTimeout: 30 * time.Second,
		DiscardTimeout:       15 * time.Second,
		randFloat:            rand.Float64,
	}
}

func (s *OrderAbandoned) Name() string { return "OrderAbandoned" }

func (s *OrderAbandoned) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	if s.randFloat() >= s.Probability {
		return Continue, nil
	}

	records, err := s.deps.Client.AbandonedCartHistory(ctx, tc.OrderID())
	if err != nil {
		return 0, fmt.Errorf("abandoned cart history: %w", err)
	}
	var lastSeen int64
	for _, r := range records {
		if r.Timestamp > lastSeen {
			lastSeen = r.Timestamp
		}
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(s.IdleDuration):
	}

	var verdict *model.BucketLogRecord
	err = await.AtMost(s.BucketRefreshTimeout).
		Condition(func(ctx context.Context) (bool, error) {
			records, err := s.deps.Client.AbandonedCartHistory(ctx, tc.OrderID())
			if err != nil {
				return false, err
			}
			for i := range records {
				if records[i].Timestamp > lastSeen {
					verdict = &records[i]
					return true, nil
				}
			}
			return false, nil
		}).
		OnTimeout(func() error {
			return Failf(ReasonTimeout, "no abandoned-cart verdict for order %s within %s",
				tc.OrderID(), s.BucketRefreshTimeout)
		}).
		Start(ctx)
	if err != nil {
		return 0, err
	}

	if verdict.UserInteracted {
		order, err := s.deps.fetchOrder(ctx, tc)
		if err != nil {
			return 0, err
		}
		if order.Status.Kind != model.StatusCollecting {
			return 0, Failf(ReasonWrongStatus,
				"order %s marked interacted but left %s, expected %s",
				tc.OrderID(), order.Status.Kind, model.StatusCollecting)
		}
		tc.MarkStageComplete(s.Name())
		return Continue, nil
	}

	err = await.AtMost(s.DiscardTimeout).
		Condition(func(ctx context.Context) (bool, error) {
			order, err := s.deps.fetchOrder(ctx, tc)
			if err != nil {
				return false, err
			}
			return order.Status.Kind == model.StatusDiscarded, nil
		}).
		OnTimeout(func() error {
			return Failf(ReasonTimeout, "untouched order %s not discarded within %s",
				tc.OrderID(), s.DiscardTimeout)
		}).
		Start(ctx)
	if err != nil {
		return 0, err
	}

	tc.MarkStageComplete(s.Name())
	return Stop, nil
}
