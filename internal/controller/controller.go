// Package controller owns the running testing flows: admission, worker
// scheduling, lifecycle and cancellation.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tinkersphere/bombardier/internal/account"
	"github.com/tinkersphere/bombardier/internal/api"
	"github.com/tinkersphere/bombardier/internal/metrics"
	"github.com/tinkersphere/bombardier/internal/model"
	"github.com/tinkersphere/bombardier/internal/ordercache"
	"github.com/tinkersphere/bombardier/internal/ratelimit"
	"github.com/tinkersphere/bombardier/internal/stage"
	"github.com/tinkersphere/bombardier/internal/statemachine"
)

// DefaultWorkers is the number of worker tasks one flow runs concurrently.
const DefaultWorkers = 100

var (
	// ErrAlreadyRunning is returned when a flow already exists for the
	// service. At most one flow per service name may run.
	ErrAlreadyRunning = errors.New("testing already running for service")

	// ErrNotFound is returned when no flow exists for the service.
	ErrNotFound = errors.New("no testing flow for service")
)

// Flow is one named, cancellable testing lifecycle against a target service.
type Flow struct {
	params  model.TestParameters
	cancel  context.CancelFunc
	limiter *ratelimit.SlowStartLimiter
	done    chan struct{}

	testsStarted  atomic.Int64
	testsFinished atomic.Int64
}

// Snapshot returns a point-in-time view of the flow's progress.
func (f *Flow) Snapshot() model.FlowSnapshot {
	return model.FlowSnapshot{
		ServiceName:   f.params.ServiceName,
		TestsStarted:  f.testsStarted.Load(),
		TestsFinished: f.testsFinished.Load(),
		NumberOfTests: f.params.NumberOfTests,
	}
}

// Controller admits, tracks and stops testing flows. One user pool, order
// cache and state machine are shared across all flows.
type Controller struct {
	mu      sync.Mutex
	running map[string]*Flow

	registry  *api.Registry
	pool      *account.Pool
	cache     *ordercache.Cache
	machine   *statemachine.OrderStateMachine
	metrics   *metrics.Metrics
	workers   int
	slowStart bool

	// Seams for tests; production wiring uses the HTTP adapter and the
	// standard pipeline.
	newClient   func(api.Descriptor) api.ServiceClient
	newPipeline func(stage.Deps, *metrics.Metrics, model.TestParameters) *stage.Pipeline
}

// New creates a controller with production wiring. Workers below one fall
// back to DefaultWorkers.
func New(registry *api.Registry, m *metrics.Metrics, workers int, slowStart bool) *Controller {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Controller{
		running:   make(map[string]*Flow),
		registry:  registry,
		pool:      account.NewPool(),
		cache:     ordercache.New(),
		machine:   statemachine.NewOrderLifecycle(),
		metrics:   m,
		workers:   workers,
		slowStart: slowStart,
		newClient: func(d api.Descriptor) api.ServiceClient {
			return api.NewHTTPClient(d)
		},
		newPipeline: stage.NewPipeline,
	}
}

// StartTestingForService admits a flow for the service, synchronously builds
// its user pool and launches the worker tasks. Exactly one concurrent caller
// wins admission; the rest get ErrAlreadyRunning.
func (c *Controller) StartTestingForService(ctx context.Context, params model.TestParameters) error {
	descriptor, err := c.registry.Resolve(params.ServiceName)
	if err != nil {
		return err
	}

	flowCtx, cancel := context.WithCancel(context.Background())
	flow := &Flow{
		params:  params,
		cancel:  cancel,
		limiter: ratelimit.New(params.RatePerSecond, c.slowStart),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if _, ok := c.running[params.ServiceName]; ok {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, params.ServiceName)
	}
	c.running[params.ServiceName] = flow
	c.mu.Unlock()

	client := c.newClient(descriptor)
	if created := c.pool.CreateUsersPool(ctx, client, params.ServiceName, params.NumberOfUsers); created == 0 {
		c.remove(params.ServiceName, flow)
		cancel()
		return fmt.Errorf("%w: %s", account.ErrNoUsersForService, params.ServiceName)
	}

	deps := stage.Deps{Client: client, Pool: c.pool, Cache: c.cache, Machine: c.machine}
	group, workerCtx := errgroup.WithContext(flowCtx)
	for i := 0; i < c.workers; i++ {
		group.Go(func() error {
			c.runWorker(workerCtx, deps, flow)
			return nil
		})
	}

	go func() {
		_ = group.Wait()
		c.remove(params.ServiceName, flow)
		cancel()
		close(flow.done)
		log.Info().
			Str("service", params.ServiceName).
			Int64("tests_finished", flow.testsFinished.Load()).
			Msg("testing flow finished")
	}()

	log.Info().
		Str("service", params.ServiceName).
		Int("workers", c.workers).
		Int("number_of_tests", params.NumberOfTests).
		Int("rate_per_second", params.RatePerSecond).
		Msg("testing flow started")
	return nil
}

// runWorker runs pipelines back-to-back until the flow's test budget is
// exhausted or the flow is cancelled. Each worker start builds one fresh
// decorated pipeline; all per-test state lives in the context.
func (c *Controller) runWorker(ctx context.Context, deps stage.Deps, flow *Flow) {
	service := flow.params.ServiceName
	c.metrics.WorkerStarted(service)
	defer c.metrics.WorkerFinished(service)

	pipeline := c.newPipeline(deps, c.metrics, flow.params)
	budget := int64(flow.params.NumberOfTests)
	for {
		if err := flow.limiter.Wait(ctx); err != nil {
			return
		}
		if !claimTest(&flow.testsStarted, budget) {
			return
		}
		tc := stage.NewTestContext(flow.params)
		pipeline.Run(ctx, tc)
		flow.testsFinished.Add(1)
	}
}

// claimTest atomically reserves one test number below the budget.
func claimTest(started *atomic.Int64, budget int64) bool {
	for {
		cur := started.Load()
		if cur >= budget {
			return false
		}
		if started.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// GetTestingFlowForService returns a snapshot of the flow's counters.
func (c *Controller) GetTestingFlowForService(name string) (model.FlowSnapshot, error) {
	c.mu.Lock()
	flow, ok := c.running[name]
	c.mu.Unlock()
	if !ok {
		return model.FlowSnapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return flow.Snapshot(), nil
}

// StopTestByServiceName cancels the flow and waits until every in-flight
// pipeline has unwound before removing the entry.
func (c *Controller) StopTestByServiceName(ctx context.Context, name string) error {
	c.mu.Lock()
	flow, ok := c.running[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	flow.cancel()
	select {
	case <-flow.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.remove(name, flow)
	log.Info().Str("service", name).Msg("testing flow stopped")
	return nil
}

// StopAllTests stops every running flow.
func (c *Controller) StopAllTests(ctx context.Context) error {
	c.mu.Lock()
	names := make([]string, 0, len(c.running))
	for name := range c.running {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		if err := c.StopTestByServiceName(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// remove deletes the entry only if it still points at this flow, so a stop
// racing a natural completion cannot drop a newer flow.
func (c *Controller) remove(name string, flow *Flow) {
	c.mu.Lock()
	if current, ok := c.running[name]; ok && current == flow {
		delete(c.running, name)
	}
	c.mu.Unlock()
}
