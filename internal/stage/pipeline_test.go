package stage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinkersphere/bombardier/internal/api/apitest"
	"github.com/tinkersphere/bombardier/internal/metrics"
	"github.com/tinkersphere/bombardier/internal/model"
)

// fullPipeline mirrors NewPipeline but with the probabilistic stages pinned
// and timeouts shrunk for tests.
func fullPipeline(deps Deps, m *metrics.Metrics, abandonOn, changeOn bool) *Pipeline {
	wrap := func(s Stage) Stage { return MetricRecordable(ExceptionFree(s), m) }

	abandoned := NewOrderAbandoned(deps)
	abandoned.IdleDuration = 10 * time.Millisecond
	abandoned.BucketRefreshTimeout = 300 * time.Millisecond
	abandoned.DiscardTimeout = 300 * time.Millisecond
	abandoned.randFloat = func() float64 {
		if abandonOn {
			return 0
		}
		return 1
	}
	change := NewOrderChangeItemsAfterFinalization(deps)
	change.randFloat = func() float64 {
		if changeOn {
			return 0
		}
		return 1
	}

	return newPipelineFromStages("shop", m,
		wrap(NewChooseUserAccount(deps)),
		wrap(NewOrderCreation(deps)),
		wrap(NewOrderCollecting(deps)),
		wrap(abandoned),
		wrap(NewOrderFinalizing(deps)),
		wrap(NewOrderSettingDeliverySlots(deps)),
		wrap(change),
		wrap(NewOrderFinalizing(deps)),
		wrap(NewOrderSettingDeliverySlots(deps)),
		MetricRecordable(ExceptionFree(Retryable(NewOrderPayment(deps))), m),
		wrap(NewOrderDelivery(deps)),
	)
}

// testOutcomeCount reads the bombardier_tests_total counter for a label set.
func testOutcomeCount(t *testing.T, m *metrics.Metrics, service, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "bombardier_tests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["service"] == service && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPipeline_HappyPath(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	m := metrics.New()
	p := fullPipeline(deps, m, false, false)
	tc := testContext()

	outcome := p.Run(context.Background(), tc)

	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, 1.0, testOutcomeCount(t, m, "shop", OutcomeSuccess), "exactly one sample per test")
	assert.Contains(t, tc.StagesComplete, "OrderPayment")
	assert.Contains(t, tc.StagesComplete, "OrderDelivery")
}

func TestPipeline_ChangeAfterFinalizationRefinalizes(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	m := metrics.New()
	p := fullPipeline(deps, m, false, true)
	tc := testContext()

	outcome := p.Run(context.Background(), tc)

	assert.Equal(t, OutcomeSuccess, outcome)
	assert.True(t, tc.WasChangedAfterFinalization)

	// Finalization and slot selection ran twice.
	finalizations := 0
	for _, name := range tc.StagesComplete {
		if name == "OrderFinalizing" {
			finalizations++
		}
	}
	assert.Equal(t, 2, finalizations)
}

func TestPipeline_AbandonedInteractedCartContinues(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	m := metrics.New()
	p := fullPipeline(deps, m, true, false)
	tc := testContext()

	// The fake records user interaction on every item put, so the verdict
	// arrives with userInteracted=true once a new bucket record lands.
	go func() {
		time.Sleep(50 * time.Millisecond)
		fake.AppendBucketRecord(tc.OrderID(), model.BucketLogRecord{
			TransactionID:  uuid.New(),
			Timestamp:      time.Now().Add(time.Minute).UnixMilli(),
			UserInteracted: true,
		})
	}()

	outcome := p.Run(context.Background(), tc)

	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Contains(t, tc.StagesComplete, "OrderAbandoned")
}

func TestPipeline_PaymentRetryExhaustionEndsTest(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	payCalls := 0
	fake.PayOrderFn = func(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
		payCalls++
		order, err := fake.GetOrder(ctx, userID, orderID)
		if err != nil {
			return nil, err
		}
		order.PaymentHistory = append(order.PaymentHistory, model.PaymentLogRecord{
			Timestamp: time.Now().UnixMilli(), Status: model.PaymentFailed,
		})
		return order, nil
	}
	m := metrics.New()
	p := fullPipeline(deps, m, false, false)
	tc := testContext()

	outcome := p.Run(context.Background(), tc)

	assert.Equal(t, "RETRY", outcome)
	assert.Equal(t, 5, payCalls, "retry budget is five attempts")
	assert.Equal(t, 1.0, testOutcomeCount(t, m, "shop", "RETRY"))
}

func TestPipeline_InsufficientFundsIsFail(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	fake.PayOrderFn = func(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
		order, err := fake.GetOrder(ctx, userID, orderID)
		if err != nil {
			return nil, err
		}
		order.PaymentHistory = append(order.PaymentHistory, model.PaymentLogRecord{
			Timestamp: time.Now().UnixMilli(), Status: model.PaymentNotEnoughMoney,
		})
		return order, nil
	}
	m := metrics.New()
	p := fullPipeline(deps, m, false, false)

	outcome := p.Run(context.Background(), testContext())

	assert.Equal(t, "FAIL", outcome)
	assert.Equal(t, 1.0, testOutcomeCount(t, m, "shop", "FAIL"))
}

func TestPipeline_IllegalTransitionIsFail(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	// Finalization flips the order straight to Delivered: Collecting ->
	// Delivered has no edge in the lifecycle.
	fake.FinalizeOrderFn = func(ctx context.Context, orderID uuid.UUID) (*model.BookingDto, error) {
		order, err := fake.GetOrder(ctx, uuid.Nil, orderID)
		if err != nil {
			return nil, err
		}
		order.Status = model.OrderStatus{Kind: model.StatusDelivered}
		fake.SetOrder(order)
		return &model.BookingDto{ID: uuid.New()}, nil
	}
	m := metrics.New()
	p := fullPipeline(deps, m, false, false)

	outcome := p.Run(context.Background(), testContext())

	assert.Equal(t, "FAIL", outcome)
}

func TestPipeline_RemoteErrorIsUnexpectedFail(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	fake.CreateOrderFn = func(ctx context.Context, userID uuid.UUID) (*model.Order, error) {
		return nil, assert.AnError
	}
	m := metrics.New()
	p := fullPipeline(deps, m, false, false)

	outcome := p.Run(context.Background(), testContext())

	assert.Equal(t, OutcomeUnexpectedFail, outcome)
	assert.Equal(t, 1.0, testOutcomeCount(t, m, "shop", OutcomeUnexpectedFail))
}

func TestNewPipeline_StopAfterOrderCreation(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	m := metrics.New()
	params := model.TestParameters{ServiceName: "shop", StopAfterOrderCreation: true}
	p := NewPipeline(deps, m, params)
	tc := NewTestContext(params)

	outcome := p.Run(context.Background(), tc)

	assert.Equal(t, "STOP", outcome)
	assert.NotEqual(t, uuid.Nil, tc.OrderID(), "the order is still created")
	assert.NotContains(t, tc.StagesComplete, "OrderPayment")
}

func TestNewPipeline_SuccessByPaymentFactSkipsDelivery(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	m := metrics.New()
	params := model.TestParameters{ServiceName: "shop", TestSuccessByThePaymentFact: true}
	p := NewPipeline(deps, m, params)

	for _, s := range p.stages {
		assert.NotEqual(t, "OrderDelivery", InnermostName(s))
	}
}

func TestAbandoned_UntouchedCartDiscardStops(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	tc := testContext()
	runThrough(t, deps, tc, NewOrderCollecting(deps))

	abandoned := NewOrderAbandoned(deps)
	abandoned.IdleDuration = 10 * time.Millisecond
	abandoned.BucketRefreshTimeout = 500 * time.Millisecond
	abandoned.DiscardTimeout = 500 * time.Millisecond
	abandoned.randFloat = func() float64 { return 0 }

	go func() {
		time.Sleep(50 * time.Millisecond)
		fake.AppendBucketRecord(tc.OrderID(), model.BucketLogRecord{
			TransactionID:  uuid.New(),
			Timestamp:      time.Now().Add(time.Minute).UnixMilli(),
			UserInteracted: false,
		})
		order, _ := deps.Cache.Get("shop", tc.OrderID())
		order.Status = model.OrderStatus{Kind: model.StatusDiscarded}
		fake.SetOrder(&order)
	}()

	cont, err := abandoned.Run(context.Background(), tc)

	require.NoError(t, err)
	assert.Equal(t, Stop, cont, "a properly discarded cart ends the test neutrally")
}

func TestAbandoned_InteractedCartMustStayCollecting(t *testing.T) {
	fake := apitest.New()
	deps := newTestDeps(t, fake)
	tc := testContext()
	runThrough(t, deps, tc, NewOrderCollecting(deps))

	abandoned := NewOrderAbandoned(deps)
	abandoned.IdleDuration = 10 * time.Millisecond
	abandoned.BucketRefreshTimeout = 500 * time.Millisecond
	abandoned.randFloat = func() float64 { return 0 }

	// Verdict says interacted, but the target discarded the order anyway.
	go func() {
		time.Sleep(50 * time.Millisecond)
		fake.AppendBucketRecord(tc.OrderID(), model.BucketLogRecord{
			TransactionID:  uuid.New(),
			Timestamp:      time.Now().Add(time.Minute).UnixMilli(),
			UserInteracted: true,
		})
		order, _ := deps.Cache.Get("shop", tc.OrderID())
		order.Status = model.OrderStatus{Kind: model.StatusDiscarded}
		fake.SetOrder(&order)
	}()

	_, err := abandoned.Run(context.Background(), tc)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, ReasonWrongStatus, failed.Reason)
}
