package stage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tinkersphere/bombardier/internal/model"
)

var (
	errUserAlreadySet  = errors.New("test context: user id assigned twice")
	errOrderAlreadySet = errors.New("test context: order id assigned twice")
)

// TestContext carries the state of one end-to-end test. It is owned
// exclusively by the single worker running the test and is never shared, so
// it needs no internal synchronization.
type TestContext struct {
	TestID        uuid.UUID
	ServiceName   string
	Params        model.TestParameters
	TestStartTime time.Time

	// StagesComplete lists the stage names that finished, in order.
	StagesComplete []string

	// WasChangedAfterFinalization records that items were modified after a
	// successful finalization. Sticky once set; used for post-run auditing.
	WasChangedAfterFinalization bool

	userID  uuid.UUID
	orderID uuid.UUID

	pendingFinalization  bool
	pendingSlotSelection bool
	unexpectedError      bool
}

// NewTestContext creates a fresh context for one pipeline run.
func NewTestContext(params model.TestParameters) *TestContext {
	return &TestContext{
		TestID:        uuid.New(),
		ServiceName:   params.ServiceName,
		Params:        params,
		TestStartTime: time.Now(),
	}
}

// SetUserID assigns the test's user exactly once.
func (tc *TestContext) SetUserID(id uuid.UUID) error {
	if tc.userID != uuid.Nil {
		return errUserAlreadySet
	}
	tc.userID = id
	return nil
}

// UserID returns the assigned user id, or uuid.Nil before assignment.
func (tc *TestContext) UserID() uuid.UUID { return tc.userID }

// SetOrderID assigns the test's order exactly once.
func (tc *TestContext) SetOrderID(id uuid.UUID) error {
	if tc.orderID != uuid.Nil {
		return errOrderAlreadySet
	}
	tc.orderID = id
	return nil
}

// OrderID returns the assigned order id, or uuid.Nil before assignment.
func (tc *TestContext) OrderID() uuid.UUID { return tc.orderID }

// MarkStageComplete appends a finished stage to the completion log.
func (tc *TestContext) MarkStageComplete(name string) {
	tc.StagesComplete = append(tc.StagesComplete, name)
}

// FinalizationNeeded reports whether an OrderFinalizing stage still has work:
// either the order was never finalized, or items changed after finalization.
func (tc *TestContext) FinalizationNeeded() bool {
	return tc.pendingFinalization
}
