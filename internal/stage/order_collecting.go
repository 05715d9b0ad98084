package stage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
	"github.com/tinkersphere/bombardier/internal/model"
)

const (
	// defaultMaxDistinctItems caps how many distinct items one test puts
	// into the cart.
	defaultMaxDistinctItems = 3
	maxItemAmount           = 5
)

// OrderCollecting fills the order with a random selection of catalog items
// and waits for every put to become observable on the order snapshot.
type OrderCollecting struct {
	deps Deps

	// VisibilityTimeout bounds how long a single item put may stay
	// unobservable before the stage fails.
	VisibilityTimeout time.Duration

	// MaxDistinctItems caps the random item count per test.
	MaxDistinctItems int
}

// NewOrderCollecting creates the stage with production timeouts.
func NewOrderCollecting(deps Deps) *OrderCollecting {
	return &OrderCollecting{
		deps:              deps,
		VisibilityTimeout: 3 * time.Second,
		MaxDistinctItems:  defaultMaxDistinctItems,
	}
}

func (s *OrderCollecting) Name() string { return "OrderCollecting" }

func (s *OrderCollecting) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	items, err := s.deps.Client.GetAvailableItems(ctx, tc.UserID())
	if err != nil {
		return 0, fmt.Errorf("get available items: %w", err)
	}
	if len(items) == 0 {
		return 0, Failf(ReasonNoItems, "target offers no items to collect")
	}

	limit := s.MaxDistinctItems
	if limit > len(items) {
		limit = len(items)
	}
	count := 1 + rand.Intn(limit)
	for _, idx := range rand.Perm(len(items))[:count] {
		item := items[idx]
		amount := 1 + rand.Intn(maxItemAmount)
		if err := s.putAndAwait(ctx, tc, item, amount); err != nil {
			return 0, err
		}
	}

	tc.pendingFinalization = true
	tc.MarkStageComplete(s.Name())
	return Continue, nil
}

func (s *OrderCollecting) putAndAwait(ctx context.Context, tc *TestContext, item model.Item, amount int) error {
	accepted, err := s.deps.Client.PutItemToOrder(ctx, tc.UserID(), tc.OrderID(), item.ID, amount)
	if err != nil {
		return fmt.Errorf("put item %s: %w", item.ID, err)
	}
	if !accepted {
		return Failf(ReasonWrongStatus, "target rejected item %s x%d for collecting order %s",
			item.ID, amount, tc.OrderID())
	}

	return await.AtMost(s.VisibilityTimeout).
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
			return Failf(ReasonTimeout, "item %s x%d not visible on order %s within %s",
				item.ID, amount, tc.OrderID(), s.VisibilityTimeout)
		}).
		Start(ctx)
}
