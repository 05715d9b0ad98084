package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
	"github.com/tinkersphere/bombardier/internal/model"
)

// deliverySlack is added on top of the promised delivery duration before the
// wait for a terminal status gives up.
const deliverySlack = 5 * time.Second

// OrderDelivery kicks off delivery and audits the terminal outcome: a
// delivered order must meet its promised slot and log SUCCESS, a refunded
// one must have withdrawals fully compensated.
type OrderDelivery struct {
	deps Deps
}

// NewOrderDelivery creates the stage.
func NewOrderDelivery(deps Deps) *OrderDelivery {
	return &OrderDelivery{deps: deps}
}

func (s *OrderDelivery) Name() string { return "OrderDelivery" }

func (s *OrderDelivery) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	order, err := s.deps.fetchOrder(ctx, tc)
	if err != nil {
		return 0, err
	}
	if order.Status.Kind != model.StatusPayed {
		return 0, Failf(ReasonWrongStatus, "delivery requested for order %s in %s, expected %s",
			tc.OrderID(), order.Status.Kind, model.StatusPayed)
	}
	if order.DeliveryDuration == nil {
		return 0, Failf(ReasonWrongStatus, "payed order %s has no delivery slot", tc.OrderID())
	}
	durationSec := *order.DeliveryDuration

	if err := s.deps.Client.SimulateDelivery(ctx, tc.OrderID()); err != nil {
		return 0, fmt.Errorf("simulate delivery: %w", err)
	}

	// Polling may miss the InDelivery hop, so terminal detection reads raw
	// snapshots instead of pairwise transition checks.
	deadline := time.Duration(durationSec)*time.Second + deliverySlack
	var final *model.Order
	err = await.AtMost(deadline).
		Condition(func(ctx context.Context) (bool, error) {
			current, err := s.deps.Client.GetOrder(ctx, tc.UserID(), tc.OrderID())
			if err != nil {
				return false, err
			}
			s.deps.Cache.Put(tc.ServiceName, *current)
			switch current.Status.Kind {
			case model.StatusPayed, model.StatusInDelivery:
				return false, nil
			default:
				final = current
				return true, nil
			}
		}).
		OnTimeout(func() error {
			return Failf(ReasonTimeout, "order %s reached no terminal status within %s",
				tc.OrderID(), deadline)
		}).
		Start(ctx)
	if err != nil {
		return 0, err
	}

	switch final.Status.Kind {
	case model.StatusDelivered:
		if err := s.checkDelivered(ctx, tc, final, durationSec); err != nil {
			return 0, err
		}
	case model.StatusRefund:
		if err := s.checkRefunded(ctx, tc, final); err != nil {
			return 0, err
		}
	default:
		return 0, Failf(ReasonIllegalTransition, "order %s ended delivery in %s",
			tc.OrderID(), final.Status.Kind)
	}

	tc.MarkStageComplete(s.Name())
	return Continue, nil
}

// checkDelivered verifies the delivery log and the promised slot: the order
// must finish no later than lastPayment + deliveryDuration.
func (s *OrderDelivery) checkDelivered(ctx context.Context, tc *TestContext, order *model.Order, durationSec int64) error {
	record, err := s.deps.Client.DeliveryLog(ctx, tc.OrderID())
	if err != nil {
		return fmt.Errorf("delivery log: %w", err)
	}
	if record.Outcome != model.DeliverySuccess {
		return Failf(ReasonWrongStatus, "order %s delivered but delivery log says %s",
			tc.OrderID(), record.Outcome)
	}

	payment := order.LastPayment()
	if payment == nil {
		return Failf(ReasonWrongStatus, "delivered order %s has no payment record", tc.OrderID())
	}
	deadlineMillis := payment.Timestamp + durationSec*1000
	if order.Status.DeliveryFinishTime > deadlineMillis {
		return Failf(ReasonDeliveryDeadline, "order %s finished at %d, promised by %d",
			tc.OrderID(), order.Status.DeliveryFinishTime, deadlineMillis)
	}
	return nil
}

// checkRefunded verifies the money came back: total WITHDRAW must equal
// total REFUND on the order's financial history. The refund is mirrored
// into the local ledger.
func (s *OrderDelivery) checkRefunded(ctx context.Context, tc *TestContext, order *model.Order) error {
	records, err := s.deps.Client.GetFinancialHistory(ctx, tc.UserID(), tc.OrderID())
	if err != nil {
		return fmt.Errorf("financial history: %w", err)
	}
	withdrawn, refunded := 0, 0
	for _, r := range records {
		switch r.Type {
		case model.FinancialWithdraw:
			withdrawn += r.Amount
		case model.FinancialRefund:
			refunded += r.Amount
		}
	}
	if withdrawn != refunded {
		return Failf(ReasonRefundMismatch, "order %s refunded %d of %d withdrawn",
			tc.OrderID(), refunded, withdrawn)
	}
	if err := s.deps.Pool.Refund(tc.UserID(), refunded); err != nil {
		return fmt.Errorf("mirror refund: %w", err)
	}
	return nil
}
