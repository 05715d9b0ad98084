// Package stage contains the test pipeline: the stage contract, the
// decorator chain, the concrete order-lifecycle stages, and the pipeline
// runner.
package stage

import (
	"context"
	"fmt"

	"github.com/tinkersphere/bombardier/internal/account"
	"github.com/tinkersphere/bombardier/internal/api"
	"github.com/tinkersphere/bombardier/internal/model"
	"github.com/tinkersphere/bombardier/internal/ordercache"
	"github.com/tinkersphere/bombardier/internal/statemachine"
)

// Stage is one phase of a test with a single responsibility.
//
// Stages return (Continue, nil) on success, (Retry, nil) or (Stop, nil) for
// the neutral flow-control outcomes, and (0, err) on any failure: a
// *FailedError marks a business failure, anything else is unexpected. The
// Fail and Error continuations are produced by the decorator layer, never by
// concrete stages.
type Stage interface {
	Name() string
	Run(ctx context.Context, tc *TestContext) (Continuation, error)
}

// Wrapper is implemented by decorators so the innermost concrete stage name
// can be recovered for metrics and logs.
type Wrapper interface {
	Stage
	Wrapped() Stage
}

// InnermostName walks the decorator chain down to the concrete stage name.
func InnermostName(s Stage) string {
	for {
		w, ok := s.(Wrapper)
		if !ok {
			return s.Name()
		}
		s = w.Wrapped()
	}
}

// Deps bundles the shared collaborators every stage may need. Stages hold a
// copy at construction; all fields are concurrency-safe.
type Deps struct {
	Client  api.ServiceClient
	Pool    *account.Pool
	Cache   *ordercache.Cache
	Machine *statemachine.OrderStateMachine
}

// fetchOrder reads the order's current snapshot from the target, validates
// the observed status change against the lifecycle machine, and refreshes
// the cache. Status reads that do not change the status kind are not
// transition events and are not checked.
func (d Deps) fetchOrder(ctx context.Context, tc *TestContext) (*model.Order, error) {
	order, err := d.Client.GetOrder(ctx, tc.UserID(), tc.OrderID())
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := d.observeOrder(tc, order); err != nil {
		return nil, err
	}
	return order, nil
}

// observeOrder runs the transition check against the cached snapshot and
// stores the new one.
func (d Deps) observeOrder(tc *TestContext, order *model.Order) error {
	prev, seen := d.Cache.Get(tc.ServiceName, order.ID)
	if seen && prev.Status.Kind != order.Status.Kind {
		allowed, err := d.Machine.IsTransitionAllowed(prev.Status.Kind, order.Status.Kind)
		if err != nil {
			return fmt.Errorf("order %s: %w", order.ID, err)
		}
		if !allowed {
			return Failf(ReasonIllegalTransition, "order %s moved %s -> %s",
				order.ID, prev.Status.Kind, order.Status.Kind)
		}
	}
	d.Cache.Put(tc.ServiceName, *order)
	return nil
}
