package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinkersphere/bombardier/internal/model"
)

func TestOrderLifecycle_LegalTransitions(t *testing.T) {
	m := NewOrderLifecycle()

	legal := []Transition{
		{model.StatusCollecting, model.StatusBooked},
		{model.StatusCollecting, model.StatusDiscarded},
		{model.StatusBooked, model.StatusCollecting},
		{model.StatusBooked, model.StatusBooked},
		{model.StatusBooked, model.StatusPayed},
		{model.StatusPayed, model.StatusInDelivery},
		{model.StatusInDelivery, model.StatusDelivered},
		{model.StatusInDelivery, model.StatusRefund},
	}
	for _, tr := range legal {
		ok, err := m.IsTransitionAllowed(tr.From, tr.To)
		require.NoError(t, err)
		assert.True(t, ok, "%s -> %s should be legal", tr.From, tr.To)
	}
}

func TestOrderLifecycle_AnyStateToFailed(t *testing.T) {
	m := NewOrderLifecycle()

	all := []model.StatusKind{
		model.StatusCollecting, model.StatusDiscarded, model.StatusBooked,
		model.StatusPayed, model.StatusInDelivery, model.StatusDelivered,
		model.StatusRefund, model.StatusFailed,
	}
	for _, from := range all {
		ok, err := m.IsTransitionAllowed(from, model.StatusFailed)
		require.NoError(t, err)
		assert.True(t, ok, "%s -> FAILED should be legal", from)
	}
}

func TestOrderLifecycle_IllegalTransitions(t *testing.T) {
	m := NewOrderLifecycle()

	illegal := []Transition{
		{model.StatusCollecting, model.StatusPayed},
		{model.StatusCollecting, model.StatusDelivered},
		{model.StatusBooked, model.StatusDelivered},
		{model.StatusBooked, model.StatusInDelivery},
		{model.StatusPayed, model.StatusCollecting},
		{model.StatusPayed, model.StatusDelivered},
		{model.StatusInDelivery, model.StatusCollecting},
		{model.StatusDelivered, model.StatusCollecting},
		{model.StatusRefund, model.StatusPayed},
	}
	for _, tr := range illegal {
		ok, err := m.IsTransitionAllowed(tr.From, tr.To)
		require.NoError(t, err)
		assert.False(t, ok, "%s -> %s should be illegal", tr.From, tr.To)
	}
}

func TestIsTransitionAllowed_UnknownState(t *testing.T) {
	m := New([]Transition{{model.StatusCollecting, model.StatusBooked}})

	_, err := m.IsTransitionAllowed(model.StatusKind("BOGUS"), model.StatusBooked)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownState), "error should be ErrUnknownState")
}

func TestIsTransitionAllowed_KnownStateIllegalTarget(t *testing.T) {
	m := New([]Transition{{model.StatusCollecting, model.StatusBooked}})

	ok, err := m.IsTransitionAllowed(model.StatusCollecting, model.StatusRefund)
	require.NoError(t, err, "known from-state must not report ErrUnknownState")
	assert.False(t, ok)
}
