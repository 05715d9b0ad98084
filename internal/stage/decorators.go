package stage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tinkersphere/bombardier/internal/metrics"
)

// maxRetryAttempts bounds the retryable decorator. If the last attempt also
// asks for Retry, the Retry continuation is passed through and the pipeline
// ends the test.
const maxRetryAttempts = 5

// RetryableStage re-runs the wrapped stage while it returns Retry, up to
// maxRetryAttempts times. Every other outcome passes through unchanged.
type RetryableStage struct {
	inner Stage
}

// Retryable wraps a stage with the retry policy.
func Retryable(inner Stage) *RetryableStage {
	return &RetryableStage{inner: inner}
}

func (s *RetryableStage) Name() string   { return InnermostName(s.inner) }
func (s *RetryableStage) Wrapped() Stage { return s.inner }

func (s *RetryableStage) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	var cont Continuation
	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		cont, err = s.inner.Run(ctx, tc)
		if cont != Retry || err != nil {
			return cont, err
		}
		log.Debug().
			Str("service", tc.ServiceName).
			Str("stage", s.Name()).
			Str("test_id", tc.TestID.String()).
			Int("attempt", attempt).
			Msg("stage requested retry")
	}
	return Retry, nil
}

// ExceptionFreeStage converts errors from the wrapped stage into
// continuations: a *FailedError becomes Fail, cancellation becomes Stop,
// anything else becomes Error. Downstream of this decorator a stage run
// never returns an error.
type ExceptionFreeStage struct {
	inner Stage
}

// ExceptionFree wraps a stage with the error-classification policy.
func ExceptionFree(inner Stage) *ExceptionFreeStage {
	return &ExceptionFreeStage{inner: inner}
}

func (s *ExceptionFreeStage) Name() string   { return InnermostName(s.inner) }
func (s *ExceptionFreeStage) Wrapped() Stage { return s.inner }

func (s *ExceptionFreeStage) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	cont, err := s.inner.Run(ctx, tc)
	if err == nil {
		return cont, nil
	}

	name := InnermostName(s.inner)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		// Cancellation is not an error; the worker is shutting down.
		return Stop, nil
	}

	var failed *FailedError
	if errors.As(err, &failed) {
		log.Warn().
			Str("service", tc.ServiceName).
			Str("stage", name).
			Str("test_id", tc.TestID.String()).
			Str("reason", failed.Reason).
			Msg(failed.Message)
		return Fail, nil
	}

	log.Error().
		Err(err).
		Str("service", tc.ServiceName).
		Str("stage", name).
		Str("test_id", tc.TestID.String()).
		Msg("unexpected stage error")
	tc.unexpectedError = true
	return Error, nil
}

// MetricRecordableStage times the wrapped stage and records the sample under
// {service, stage, outcome}.
type MetricRecordableStage struct {
	inner   Stage
	metrics *metrics.Metrics
}

// MetricRecordable wraps a stage with duration recording.
func MetricRecordable(inner Stage, m *metrics.Metrics) *MetricRecordableStage {
	return &MetricRecordableStage{inner: inner, metrics: m}
}

func (s *MetricRecordableStage) Name() string   { return InnermostName(s.inner) }
func (s *MetricRecordableStage) Wrapped() Stage { return s.inner }

func (s *MetricRecordableStage) Run(ctx context.Context, tc *TestContext) (Continuation, error) {
	start := time.Now()
	cont, err := s.inner.Run(ctx, tc)
	s.metrics.RecordStage(tc.ServiceName, InnermostName(s.inner), cont.String(), time.Since(start))
	return cont, err
}
