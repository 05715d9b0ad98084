package statemachine

import (
	"errors"
	"fmt"

	"github.com/tinkersphere/bombardier/internal/model"
)

// ErrUnknownState is returned when a transition check starts from a status
// kind the machine has no entry for. This is distinct from a known state
// with an illegal target, which is reported as (false, nil).
var ErrUnknownState = errors.New("unknown order state")

// Transition is one legal (from, to) edge of the order lifecycle.
type Transition struct {
	From model.StatusKind
	To   model.StatusKind
}

// OrderStateMachine checks observed order status changes against the legal
// transition table. Immutable after construction; safe for concurrent reads.
type OrderStateMachine struct {
	allowed map[model.StatusKind]map[model.StatusKind]struct{}
}

// New builds a state machine from an explicit transition list.
func New(transitions []Transition) *OrderStateMachine {
	allowed := make(map[model.StatusKind]map[model.StatusKind]struct{})
	for _, t := range transitions {
		targets, ok := allowed[t.From]
		if !ok {
			targets = make(map[model.StatusKind]struct{})
			allowed[t.From] = targets
		}
		targets[t.To] = struct{}{}
	}
	return &OrderStateMachine{allowed: allowed}
}

// NewOrderLifecycle builds the authoritative order lifecycle machine:
//
//	Collecting -> Booked | Discarded
//	Booked     -> Collecting | Booked | Payed
//	Payed      -> InDelivery
//	InDelivery -> Delivered | Refund
//	any        -> Failed
//
// Booked -> Booked covers an order still awaiting payment within the
// deadline; Booked -> Collecting covers a cancelled booking or a missed
// payment deadline.
func NewOrderLifecycle() *OrderStateMachine {
	transitions := []Transition{
		{model.StatusCollecting, model.StatusBooked},
		{model.StatusCollecting, model.StatusDiscarded},
		{model.StatusBooked, model.StatusCollecting},
		{model.StatusBooked, model.StatusBooked},
		{model.StatusBooked, model.StatusPayed},
		{model.StatusPayed, model.StatusInDelivery},
		{model.StatusInDelivery, model.StatusDelivered},
		{model.StatusInDelivery, model.StatusRefund},
	}
	for _, from := range []model.StatusKind{
		model.StatusCollecting,
		model.StatusDiscarded,
		model.StatusBooked,
		model.StatusPayed,
		model.StatusInDelivery,
		model.StatusDelivered,
		model.StatusRefund,
		model.StatusFailed,
	} {
		transitions = append(transitions, Transition{from, model.StatusFailed})
	}
	return New(transitions)
}

// IsTransitionAllowed reports whether from -> to is a legal transition.
// Returns ErrUnknownState when from has no entry in the table at all.
func (m *OrderStateMachine) IsTransitionAllowed(from, to model.StatusKind) (bool, error) {
	targets, ok := m.allowed[from]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownState, from)
	}
	_, ok = targets[to]
	return ok, nil
}
