package stage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tinkersphere/bombardier/internal/metrics"
	"github.com/tinkersphere/bombardier/internal/model"
)

// Test outcome labels beyond the Continuation set.
const (
	OutcomeSuccess        = "SUCCESS"
	OutcomeUnexpectedFail = "UNEXPECTED_FAIL"
)

// Pipeline is the ordered stage sequence one test runs through. Stages are
// stateless with respect to any particular test; a pipeline instance is safe
// to reuse across tests and workers.
type Pipeline struct {
	service string
	stages  []Stage
	metrics *metrics.Metrics

	// neutralEnd marks pipelines that are built to end early on purpose
	// (stop_after_order_creation); a full pass then counts as STOP.
	neutralEnd bool
}

// NewPipeline assembles the decorated stage sequence for the given flow
// parameters. Pipeline order: user -> creation -> collect -> abandon? ->
// finalize -> slots -> change? -> finalize? -> slots? -> pay -> deliver,
// with the optional passes no-oping through context flags.
func NewPipeline(deps Deps, m *metrics.Metrics, params model.TestParameters) *Pipeline {
	wrap := func(s Stage) Stage {
		return MetricRecordable(ExceptionFree(s), m)
	}

	stages := []Stage{
		wrap(NewChooseUserAccount(deps)),
		wrap(NewOrderCreation(deps)),
	}
	if params.StopAfterOrderCreation {
		return &Pipeline{service: params.ServiceName, stages: stages, metrics: m, neutralEnd: true}
	}

	stages = append(stages,
		wrap(NewOrderCollecting(deps)),
		wrap(NewOrderAbandoned(deps)),
		wrap(NewOrderFinalizing(deps)),
		wrap(NewOrderSettingDeliverySlots(deps)),
		wrap(NewOrderChangeItemsAfterFinalization(deps)),
		wrap(NewOrderFinalizing(deps)),
		wrap(NewOrderSettingDeliverySlots(deps)),
		MetricRecordable(ExceptionFree(Retryable(NewOrderPayment(deps))), m),
	)
	if !params.TestSuccessByThePaymentFact {
		stages = append(stages, wrap(NewOrderDelivery(deps)))
	}
	return &Pipeline{service: params.ServiceName, stages: stages, metrics: m}
}

// newPipelineFromStages is the test seam for assembling arbitrary sequences.
func newPipelineFromStages(service string, m *metrics.Metrics, stages ...Stage) *Pipeline {
	return &Pipeline{service: service, stages: stages, metrics: m}
}

// Run executes the pipeline within a fresh context and records exactly one
// duration sample for the test. The returned label is the recorded outcome.
func (p *Pipeline) Run(ctx context.Context, tc *TestContext) string {
	start := time.Now()
	outcome := OutcomeSuccess
	if p.neutralEnd {
		outcome = Stop.String()
	}

	for _, s := range p.stages {
		cont, err := s.Run(ctx, tc)
		if err != nil {
			// Only reachable for undecorated stages in tests; classify as
			// unexpected.
			log.Error().Err(err).Str("service", p.service).Str("stage", s.Name()).
				Msg("stage error escaped decorators")
			tc.unexpectedError = true
			cont = Error
		}
		if cont == Continue {
			continue
		}
		switch cont {
		case Error:
			if tc.unexpectedError {
				outcome = OutcomeUnexpectedFail
			} else {
				outcome = Error.String()
			}
		default:
			outcome = cont.String()
		}
		break
	}

	duration := time.Since(start)
	p.metrics.RecordTest(p.service, outcome, duration)
	log.Info().
		Str("service", p.service).
		Str("test_id", tc.TestID.String()).
		Str("outcome", outcome).
		Dur("duration", duration).
		Strs("stages_complete", tc.StagesComplete).
		Msg("test finished")
	return outcome
}
