package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/tinkersphere/bombardier/internal/await"
	"github.com/tinkersphere/bombardier/internal/model"
)

// OrderPayment pays for the booked order and mirrors the spend into the
// local credit ledger. A generic payment failure asks the retry decorator
// for another attempt; running out of money is a business failure.
type OrderPayment struct {
	deps Deps

	// PayedTimeout bounds the wait for the Payed status after a successful
	// payment record.
	PayedTimeout time.Duration
}

// NewOrderPayment creates the stage with production timeouts.
func NewOrderPayment(deps Deps) *OrderPayment {
	return &OrderPayment{deps: deps, PayedTimeout: 3 * time.Second}
}

func (s *OrderPayment) Name() string { return "OrderPayment" }

func (s *OrderPayment) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	order, err := s.deps.Client.PayOrder(ctx, tc.UserID(), tc.OrderID())
	if err != nil {
		return 0, fmt.Errorf("pay order: %w", err)
	}

	payment := order.LastPayment()
	if payment == nil {
		return 0, Failf(ReasonWrongStatus, "payment call on order %s left no payment record", tc.OrderID())
	}

	switch payment.Status {
	case model.PaymentNotEnoughMoney:
		return 0, Failf(ReasonNotEnoughMoney, "order %s: target reports insufficient funds", tc.OrderID())
	case model.PaymentFailed:
		return Retry, nil
	case model.PaymentSuccess:
		// fall through
	default:
		return 0, Failf(ReasonWrongStatus, "order %s: unknown payment status %q", tc.OrderID(), payment.Status)
	}

	if err := s.deps.observeOrder(tc, order); err != nil {
		return 0, err
	}
	if order.Status.Kind != model.StatusPayed {
		err = await.AtMost(s.PayedTimeout).
			Condition(func(ctx context.Context) (bool, error) {
				current, err := s.deps.fetchOrder(ctx, tc)
				if err != nil {
					return false, err
				}
				return current.Status.Kind == model.StatusPayed, nil
			}).
			OnTimeout(func() error {
				return Failf(ReasonTimeout, "order %s not payed within %s of successful payment",
					tc.OrderID(), s.PayedTimeout)
			}).
			Start(ctx)
		if err != nil {
			return 0, err
		}
	}

	if err := s.deps.Pool.Spend(tc.UserID(), payment.Amount); err != nil {
		return 0, fmt.Errorf("mirror spend: %w", err)
	}
	balance, err := s.deps.Pool.Balance(tc.UserID())
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if balance < 0 {
		return 0, Failf(ReasonOverWithdrawal,
			"user %s over-withdrawn by %d after order %s", tc.UserID(), -balance, tc.OrderID())
	}

	tc.MarkStageComplete(s.Name())
	return Continue, nil
}
