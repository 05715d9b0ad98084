package stage

import (
	"context"
	"fmt"
)

// ChooseUserAccount selects a random pool user for the test. Non-retryable;
// an empty pool is an unexpected harness condition, not a target failure.
type ChooseUserAccount struct {
	deps Deps
}

// NewChooseUserAccount creates the stage.
func NewChooseUserAccount(deps Deps) *ChooseUserAccount {
	return &ChooseUserAccount{deps: deps}
}

func (s *ChooseUserAccount) Name() string { return "ChooseUserAccount" }

func (s *ChooseUserAccount) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	userID, err := s.deps.Pool.GetRandomUserID(tc.ServiceName)
	if err != nil {
		return 0, fmt.Errorf("choose user: %w", err)
	}
	if err := tc.SetUserID(userID); err != nil {
		return 0, err
	}
	return Continue, nil
}
