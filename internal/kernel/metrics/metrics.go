// Package metrics provides kernel telemetry collection. It wraps Prometheus
// collectors in a private registry covering the tick loop, service
// lifecycle, the layer stack, envelope flow, and process resources.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/state"
)

// Collector gathers kernel metrics.
type Collector struct {
	registry *prometheus.Registry

	// Tick loop
	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram
	uptime       prometheus.Gauge

	// Service lifecycle
	serviceStatus   *prometheus.GaugeVec
	serviceInit     *prometheus.HistogramVec
	serviceShutdown *prometheus.HistogramVec

	// Layer stack
	layerCount *prometheus.GaugeVec

	// Envelope flow
	envelopesEmitted    *prometheus.CounterVec
	envelopesConsumed   *prometheus.CounterVec
	envelopesSuppressed prometheus.Counter

	// Process resources
	goroutines prometheus.Gauge
	cpuPercent prometheus.Gauge
	memoryUsed prometheus.Gauge

	startTime time.Time
}

// NewCollector creates a kernel metrics collector under the given
// namespace. An empty namespace defaults to "chassis".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "chassis"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "total",
		Help:      "Number of update passes performed",
	})

	c.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tick",
		Name:      "duration_seconds",
		Help:      "Time spent inside one update pass",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
	})

	c.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the orchestrator entered its run loop",
	})

	c.serviceStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "status",
			Help:      "Lifecycle status per service (0=unknown, 1=registered, 2=initializing, 3=ready, 4=stopping, 5=stopped, 6=failed, 7=stop_failed)",
		},
		[]string{"service"},
	)

	c.serviceInit = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "init_duration_seconds",
			Help:      "Time taken by a service init hook",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"service", "result"},
	)

	c.serviceShutdown = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "shutdown_duration_seconds",
			Help:      "Time taken by a service shutdown hook",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"service", "result"},
	)

	c.layerCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stack",
			Name:      "layers",
			Help:      "Number of layers in the stack per partition",
		},
		[]string{"partition"},
	)

	c.envelopesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "emitted_total",
			Help:      "Envelopes emitted through the relay",
		},
		[]string{"type"},
	)

	c.envelopesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "consumed_total",
			Help:      "Envelopes consumed during propagation",
		},
		[]string{"type"},
	)

	c.envelopesSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "envelope",
		Name:      "suppressed_total",
		Help:      "Envelopes dropped by the relay flood guard",
	})

	c.goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "goroutines",
		Help:      "Current goroutine count",
	})

	c.cpuPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "cpu_percent",
		Help:      "Host CPU utilisation sampled by the monitor layer",
	})

	c.memoryUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "process",
		Name:      "memory_used_bytes",
		Help:      "Host memory in use sampled by the monitor layer",
	})

	c.registry.MustRegister(
		c.ticksTotal, c.tickDuration, c.uptime,
		c.serviceStatus, c.serviceInit, c.serviceShutdown,
		c.layerCount,
		c.envelopesEmitted, c.envelopesConsumed, c.envelopesSuppressed,
		c.goroutines, c.cpuPercent, c.memoryUsed,
	)

	return c
}

// Registry returns the underlying Prometheus registry for scraping or
// test gathering.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveTick records one completed update pass.
func (c *Collector) ObserveTick(d time.Duration) {
	c.ticksTotal.Inc()
	c.tickDuration.Observe(d.Seconds())
	c.uptime.Set(time.Since(c.startTime).Seconds())
	c.goroutines.Set(float64(runtime.NumGoroutine()))
}

// SetServiceStatus records a service lifecycle transition.
func (c *Collector) SetServiceStatus(name string, s state.Status) {
	c.serviceStatus.WithLabelValues(name).Set(float64(s))
}

// ObserveServiceInit records the duration and outcome of an init hook.
func (c *Collector) ObserveServiceInit(name string, d time.Duration, err error) {
	c.serviceInit.WithLabelValues(name, resultLabel(err)).Observe(d.Seconds())
}

// ObserveServiceShutdown records the duration and outcome of a shutdown hook.
func (c *Collector) ObserveServiceShutdown(name string, d time.Duration, err error) {
	c.serviceShutdown.WithLabelValues(name, resultLabel(err)).Observe(d.Seconds())
}

// SetLayerCounts records the current stack partition sizes.
func (c *Collector) SetLayerCounts(regular, overlay int) {
	c.layerCount.WithLabelValues("regular").Set(float64(regular))
	c.layerCount.WithLabelValues("overlay").Set(float64(overlay))
}

// EnvelopeEmitted counts one emitted envelope.
func (c *Collector) EnvelopeEmitted(t event.Type) {
	c.envelopesEmitted.WithLabelValues(t.String()).Inc()
}

// EnvelopeConsumed counts one consumed envelope.
func (c *Collector) EnvelopeConsumed(t event.Type) {
	c.envelopesConsumed.WithLabelValues(t.String()).Inc()
}

// EnvelopeSuppressed counts one envelope dropped by the flood guard.
func (c *Collector) EnvelopeSuppressed() {
	c.envelopesSuppressed.Inc()
}

// SampleResources records a host resource sample.
func (c *Collector) SampleResources(cpuPct float64, memUsedBytes uint64) {
	c.cpuPercent.Set(cpuPct)
	c.memoryUsed.Set(float64(memUsedBytes))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
