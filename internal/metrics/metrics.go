// Package metrics owns the prometheus collectors the harness emits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles every collector behind one registry so tests can run with
// isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	testDuration  *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	testsTotal    *prometheus.CounterVec
	activeWorkers *prometheus.GaugeVec
}

// New creates a registry with all harness collectors plus the standard Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		testDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bombardier_test_duration_seconds",
			Help:    "End-to-end duration of one test pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"service", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bombardier_stage_duration_seconds",
			Help:    "Duration of a single pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"service", "stage", "outcome"}),
		testsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bombardier_tests_total",
			Help: "Finished tests by outcome.",
		}, []string{"service", "outcome"}),
		activeWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bombardier_active_workers",
			Help: "Worker tasks currently running pipelines for a service.",
		}, []string{"service"}),
	}
	m.registry.MustRegister(
		m.testDuration,
		m.stageDuration,
		m.testsTotal,
		m.activeWorkers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTest records the single duration sample every finished test emits.
func (m *Metrics) RecordTest(service, outcome string, d time.Duration) {
	m.testDuration.WithLabelValues(service, outcome).Observe(d.Seconds())
	m.testsTotal.WithLabelValues(service, outcome).Inc()
}

// RecordStage records one stage execution sample.
func (m *Metrics) RecordStage(service, stage, outcome string, d time.Duration) {
	m.stageDuration.WithLabelValues(service, stage, outcome).Observe(d.Seconds())
}

// WorkerStarted bumps the active-worker gauge for a service.
func (m *Metrics) WorkerStarted(service string) {
	m.activeWorkers.WithLabelValues(service).Inc()
}

// WorkerFinished decrements the active-worker gauge for a service.
func (m *Metrics) WorkerFinished(service string) {
	m.activeWorkers.WithLabelValues(service).Dec()
}
