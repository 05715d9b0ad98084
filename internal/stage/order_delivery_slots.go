package stage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
)

// OrderSettingDeliverySlots picks a random available delivery slot and
// verifies the choice sticks on re-read. No-ops unless the preceding
// finalization scheduled a slot selection.
type OrderSettingDeliverySlots struct {
	deps Deps

	// VisibilityTimeout bounds the wait for the chosen slot to appear on the
	// order snapshot.
	VisibilityTimeout time.Duration
}

// NewOrderSettingDeliverySlots creates the stage with production timeouts.
func NewOrderSettingDeliverySlots(deps Deps) *OrderSettingDeliverySlots {
	return &OrderSettingDeliverySlots{deps: deps, VisibilityTimeout: 3 * time.Second}
}

func (s *OrderSettingDeliverySlots) Name() string { return "OrderSettingDeliverySlots" }

func (s *OrderSettingDeliverySlots) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	if !tc.pendingSlotSelection {
		return Continue, nil
	}

	slots, err := s.deps.Client.GetDeliverySlots(ctx, tc.OrderID())
	if err != nil {
		return 0, fmt.Errorf("get delivery slots: %w", err)
	}
	if len(slots) == 0 {
		return 0, Failf(ReasonWrongStatus, "no delivery slots offered for booked order %s", tc.OrderID())
	}

	slot := int64(slots[rand.Intn(len(slots))])
	if err := s.deps.Client.SetDeliveryTime(ctx, tc.OrderID(), slot); err != nil {
		return 0, fmt.Errorf("set delivery time: %w", err)
	}

	err = await.AtMost(s.VisibilityTimeout).
		Condition(func(ctx context.Context) (bool, error) {
			order, err := s.deps.fetchOrder(ctx, tc)
			if err != nil {
				return false, err
			}
			return order.DeliveryDuration != nil && *order.DeliveryDuration == slot, nil
		}).
		OnTimeout(func() error {
			return Failf(ReasonTimeout, "delivery slot %ds not visible on order %s within %s",
				slot, tc.OrderID(), s.VisibilityTimeout)
		}).
		Start(ctx)
	if err != nil {
		return 0, err
	}

	tc.pendingSlotSelection = false
	tc.MarkStageComplete(s.Name())
	return Continue, nil
}
