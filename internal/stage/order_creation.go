package stage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinkersphere/bombardier/internal/model"
)

// OrderCreation creates the test's order and asserts it starts in
// Collecting.
type OrderCreation struct {
	deps Deps
}

// NewOrderCreation creates the stage.
func NewOrderCreation(deps Deps) *OrderCreation {
	return &OrderCreation{deps: deps}
}

func (s *OrderCreation) Name() string { return "OrderCreation" }

func (s *OrderCreation) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	order, err := s.deps.Client.CreateOrder(ctx, tc.UserID())
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	if order.ID == uuid.Nil {
		return 0, Failf(ReasonWrongStatus, "created order has no id")
	}
	if order.Status.Kind != model.StatusCollecting {
		return 0, Failf(ReasonWrongStatus, "order %s created in %s, expected %s",
			order.ID, order.Status.Kind, model.StatusCollecting)
	}
	if err := tc.SetOrderID(order.ID); err != nil {
		return 0, err
	}
	s.deps.Cache.Put(tc.ServiceName, *order)
	tc.MarkStageComplete(s.Name())
	return Continue, nil
}
