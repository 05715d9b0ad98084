package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
	"github.com/tinkersphere/bombardier/internal/model"
)

// OrderFinalizing books the collected items. The pipeline carries two
// instances of this stage; each no-ops unless the context still needs a
// finalization (first pass, or items changed after the previous one).
type OrderFinalizing struct {
	deps Deps

	// BookedTimeout bounds the wait for the Booked status to appear after a
	// successful booking.
	BookedTimeout time.Duration
}

// NewOrderFinalizing creates the stage with production timeouts.
func NewOrderFinalizing(deps Deps) *OrderFinalizing {
	return &OrderFinalizing{deps: deps, BookedTimeout: 3 * time.Second}
}

func (s *OrderFinalizing) Name() string { return "OrderFinalizing" }

func (s *OrderFinalizing) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	if !tc.FinalizationNeeded() {
		return Continue, nil
	}

	booking, err := s.deps.Client.FinalizeOrder(ctx, tc.OrderID())
	if err != nil {
		return 0, fmt.Errorf("finalize order: %w", err)
	}

	if booking.Failed() {
		// Partial booking: inventory ran out. The order must have stayed in
		// Collecting; nothing is booked, so the test ends neutrally.
		order, err := s.deps.fetchOrder(ctx, tc)
		if err != nil {
			return 0, err
		}
		if order.Status.Kind != model.StatusCollecting {
			return 0, Failf(ReasonWrongStatus,
				"order %s with %d failed booking items left %s, expected %s",
				tc.OrderID(), len(booking.FailedItems), order.Status.Kind, model.StatusCollecting)
		}
		return Stop, nil
	}

	err = await.AtMost(s.BookedTimeout).
		Condition(func(ctx context.Context) (bool, error) {
			order, err := s.deps.fetchOrder(ctx, tc)
			if err != nil {
				return false, err
			}
			return order.Status.Kind == model.StatusBooked, nil
		}).
		OnTimeout(func() error {
			return Failf(ReasonTimeout, "order %s not booked within %s after finalization",
				tc.OrderID(), s.BookedTimeout)
		}).
		Start(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.auditBooking(ctx, booking); err != nil {
		return 0, err
	}

	tc.pendingFinalization = false
	tc.pendingSlotSelection = true
	tc.MarkStageComplete(s.Name())
	return Continue, nil
}

// auditBooking cross-checks the booking log: a booking with no failed items
// must not carry FAILED per-item records.
func (s *OrderFinalizing) auditBooking(ctx context.Context, booking *model.BookingDto) error {
	records, err := s.deps.Client.GetBookingHistory(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("booking history: %w", err)
	}
	for _, r := range records {
		if r.Status == model.BookingFailed {
			return Failf(ReasonBookingBroken,
				"booking %s reported success but item %s logged FAILED", booking.ID, r.ItemID)
		}
	}
	return nil
}
