// Package metrics provides performance tracking and observability for poolkit
// using Prometheus metrics. It offers collectors for the pool lifecycle:
// acquisitions, returns, discards, loan durations, and queue depths.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for pool lifecycle events
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	collector := metrics.NewCollector("worker_buffers")
//	collector.RecordAcquire(metrics.OutcomeReused)
//	collector.RecordReturn(metrics.PathImmediate)
//	collector.ObserveLoanDuration(time.Since(start))
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total acquisitions)
// Gauge: Values that can go up or down (e.g., available instances)
// Histogram: Distribution of values (e.g., loan duration percentiles)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Acquire outcomes used as label values on the acquisition counter.
const (
	// OutcomeReused marks an acquisition served from the available collection
	OutcomeReused = "reused"
	// OutcomeCreated marks an acquisition that constructed a new instance
	OutcomeCreated = "created"
	// OutcomeExhausted marks an acquisition denied at capacity
	OutcomeExhausted = "exhausted"
)

// Return paths used as label values on the return counter.
const (
	// PathImmediate marks an explicit return with no delay
	PathImmediate = "immediate"
	// PathDeferred marks a return routed through the deferred scheduler
	PathDeferred = "deferred"
	// PathAuto marks an automatic return on handle disposal
	PathAuto = "auto"
)

var (
	// Acquires tracks the total number of acquisition attempts per pool.
	// Labels: pool (pool name), outcome (reused/created/exhausted)
	//
	// Example:
	//	metrics.Acquires.WithLabelValues("worker_buffers", metrics.OutcomeReused).Inc()
	Acquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_acquires_total",
			Help: "Total number of pool acquisition attempts",
		},
		[]string{"pool", "outcome"},
	)

	// Returns tracks the total number of instance returns per pool.
	// Labels: pool (pool name), path (immediate/deferred/auto)
	Returns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_returns_total",
			Help: "Total number of pool instance returns",
		},
		[]string{"pool", "path"},
	)

	// Discards tracks instances torn down instead of retained, whether due
	// to capacity overflow, clear, or pool shutdown.
	Discards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkit_discards_total",
			Help: "Total number of pooled instances torn down",
		},
		[]string{"pool"},
	)

	// Available tracks the current size of the available collection
	Available = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkit_available_instances",
			Help: "Number of instances currently available for acquisition",
		},
		[]string{"pool"},
	)

	// InUse tracks the current number of instances on loan
	InUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkit_in_use_instances",
			Help: "Number of instances currently on loan",
		},
		[]string{"pool"},
	)

	// DeferredDepth tracks the current depth of the deferred-return queue
	DeferredDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkit_deferred_queue_depth",
			Help: "Number of instances waiting in the deferred-return queue",
		},
		[]string{"pool"},
	)

	// LoanDuration tracks the distribution of loan durations in seconds.
	// The buckets cover sub-millisecond reuse up to long-held loans.
	LoanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "poolkit_loan_duration_seconds",
			Help: "Duration instances spend on loan",
			Buckets: []float64{
				0.0001, // 100μs - Tight acquire/release loops
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms
				1,      // 1s
				10,     // 10s - Long-held loans
				60,     // 1m
			},
		},
		[]string{"pool"},
	)
)

// Collector provides a per-pool metrics recording interface. It binds the
// shared Prometheus vectors to one pool's label so call sites stay terse.
// Each pool should create its own collector.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a new metrics collector for a pool.
// The name parameter identifies the pool in metric labels.
//
// Example:
//
//	collector := metrics.NewCollector("worker_buffers")
//	pool, err := pool.New(pool.Config[*Buffer]{
//	    Name:    "worker_buffers",
//	    Metrics: collector,
//	    ...
//	}, logger)
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// Name returns the pool name the collector is bound to
func (c *Collector) Name() string {
	return c.name
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordAcquire records one acquisition attempt with its outcome
func (c *Collector) RecordAcquire(outcome string) {
	Acquires.WithLabelValues(c.name, outcome).Inc()
}

// RecordReturn records one instance return along the given path
func (c *Collector) RecordReturn(path string) {
	Returns.WithLabelValues(c.name, path).Inc()
}

// RecordDiscard records one instance torn down instead of retained
func (c *Collector) RecordDiscard() {
	Discards.WithLabelValues(c.name).Inc()
}

// SetAvailable updates the available-instances gauge
func (c *Collector) SetAvailable(n int) {
	Available.WithLabelValues(c.name).Set(float64(n))
}

// SetInUse updates the on-loan gauge
func (c *Collector) SetInUse(n int64) {
	InUse.WithLabelValues(c.name).Set(float64(n))
}

// SetDeferredDepth updates the deferred-queue depth gauge
func (c *Collector) SetDeferredDepth(n int) {
	DeferredDepth.WithLabelValues(c.name).Set(float64(n))
}

// ObserveLoanDuration records how long one loan was outstanding
func (c *Collector) ObserveLoanDuration(d time.Duration) {
	LoanDuration.WithLabelValues(c.name).Observe(d.Seconds())
}
