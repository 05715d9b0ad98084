package stage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
	"github.com/tinkersphere/bombardier/internal/model"
)

// OrderChangeItemsAfterFinalization probabilistically re-enters collection
// on a booked order by putting one more item into it. When it fires, the
// pipeline's second finalization and slot-selection passes pick the order
// back up.
type OrderChangeItemsAfterFinalization struct {
	deps Deps

	// Probability of exercising the scenario; otherwise a no-op.
	Probability float64

	// VisibilityTimeout bounds the wait for the changed item to appear.
	VisibilityTimeout time.Duration

	randFloat func() float64
}

// NewOrderChangeItemsAfterFinalization creates the stage.
func NewOrderChangeItemsAfterFinalization(deps Deps) *OrderChangeItemsAfterFinalization {
	return &OrderChangeItemsAfterFinalization{
		deps:              deps,
		Probability:       0.5,
		VisibilityTimeout: 3 * time.Second,
		randFloat:         rand.Float64,
	}
}

func (s *OrderChangeItemsAfterFinalization) Name() string {
	return "OrderChangeItemsAfterFinalization"
}

func (s *OrderChangeItemsAfterFinalization) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	if s.randFloat() >= s.Probability {
		return Continue, nil
	}

	items, err := s.deps.Client.GetAvailableItems(ctx, tc.UserID())
	if err != nil {
		return 0, fmt.Errorf("get available items: %w", err)
	}
	if len(items) == 0 {
		return 0, Failf(ReasonNoItems, "target offers no items to change order %s with", tc.OrderID())
	}

	item := items[rand.Intn(len(items))]
	amount := 1 + rand.Intn(maxItemAmount)
	accepted, err := s.deps.Client.PutItemToOrder(ctx, tc.UserID(), tc.OrderID(), item.ID, amount)
	if err != nil {
		return 0, fmt.Errorf("put item %s: %w", item.ID, err)
	}
	if !accepted {
		return 0, Failf(ReasonWrongStatus, "target rejected post-finalization change of order %s", tc.OrderID())
	}

	// Touching a booked order legally re-opens collection (Booked -> Collecting).
	err = await.AtMost(s.VisibilityTimeout).
		Condition(func(ctx context.Context) (bool, error) {
			order, err := s.deps.fetchOrder(ctx, tc)
			if err != nil {
				return false, err
			}
			if order.Status.Kind != model.StatusCollecting {
				return false, nil
			}
			got, ok := order.ItemAmount(item.ID)
			return ok && got == amount, nil
		}).
		OnTimeout(func() error {
			return Failf(ReasonTimeout, "post-finalization change of order %s not visible within %s",
				tc.OrderID(), s.VisibilityTimeout)
		}).
		Start(ctx)
	if err != nil {
		return 0, err
	}

	tc.WasChangedAfterFinalization = true
	tc.pendingFinalization = true
	tc.pendingSlotSelection = false
	tc.MarkStageComplete(s.Name())
	return Continue, nil
}
