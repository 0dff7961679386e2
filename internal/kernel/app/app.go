// Package app implements the orchestrator: it owns one service registry and
// one layer stack, runs the cooperative tick loop, and sequences startup and
// shutdown across the kernel.
package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/journal"
	"github.com/osmium-labs/chassis/internal/kernel/layer"
	"github.com/osmium-labs/chassis/internal/kernel/metrics"
	"github.com/osmium-labs/chassis/internal/kernel/relay"
	"github.com/osmium-labs/chassis/internal/kernel/service"
	"github.com/osmium-labs/chassis/internal/kernel/state"
	"github.com/osmium-labs/chassis/pkg/logger"
)

// DefaultTickInterval is the tick period used when the spec leaves it zero.
const DefaultTickInterval = 16 * time.Millisecond

// Spec describes an application. It is immutable after construction.
type Spec struct {
	// Name prefixes log output and names the application envelope source.
	Name string

	// TickInterval is the cooperative tick period.
	TickInterval time.Duration
}

// Option configures application construction.
type Option func(*options)

type options struct {
	log        *logger.Logger
	journalCap int
	metricsNS  string
	relayOpts  []relay.Option
}

// WithLogger sets the application logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithJournalCapacity sets the journal ring capacity.
func WithJournalCapacity(n int) Option {
	return func(o *options) { o.journalCap = n }
}

// WithMetricsNamespace sets the Prometheus namespace.
func WithMetricsNamespace(ns string) Option {
	return func(o *options) { o.metricsNS = ns }
}

// WithRelayOptions forwards options to the event relay.
func WithRelayOptions(opts ...relay.Option) Option {
	return func(o *options) { o.relayOpts = append(o.relayOpts, opts...) }
}

// App is the application orchestrator. Multiple independent instances may
// coexist; the locator and relay are per-instance handles bound once during
// construction, not process globals.
type App struct {
	spec Spec
	log  *logger.Logger

	jrnl      *journal.RingBuffer
	collector *metrics.Collector
	registry  *service.Registry
	stack     *layer.Stack
	locator   *service.Locator
	relay     *relay.Relay

	running  atomic.Bool
	lastTick time.Time
	started  time.Time
}

// New constructs an application and performs its one-time wiring: the
// locator is bound to the registry and the relay to the application's own
// delivery function.
func New(spec Spec, opts ...Option) (*App, error) {
	if spec.Name == "" {
		spec.Name = "chassis"
	}
	if spec.TickInterval <= 0 {
		spec.TickInterval = DefaultTickInterval
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewDefault(spec.Name)
	}

	a := &App{
		spec:      spec,
		log:       o.log,
		jrnl:      journal.NewRingBuffer(o.journalCap),
		collector: metrics.NewCollector(o.metricsNS),
	}
	a.registry = service.NewRegistry(a.jrnl)
	a.stack = layer.NewStack(a.jrnl)
	a.locator = service.NewLocator()
	a.relay = relay.New(a.jrnl, o.relayOpts...)

	if err := a.locator.Bind(a.registry); err != nil {
		return nil, err
	}
	if err := a.relay.Bind(a.deliver); err != nil {
		return nil, err
	}

	a.jrnl.Subscribe(a.recordMetrics)

	return a, nil
}

// Spec returns the immutable application spec.
func (a *App) Spec() Spec { return a.spec }

// Locator returns the service locator handle.
func (a *App) Locator() *service.Locator { return a.locator }

// Relay returns the event relay handle.
func (a *App) Relay() *relay.Relay { return a.relay }

// Journal returns the kernel record log.
func (a *App) Journal() *journal.RingBuffer { return a.jrnl }

// Metrics returns the kernel metrics collector.
func (a *App) Metrics() *metrics.Collector { return a.collector }

// Running reports whether the tick loop is active.
func (a *App) Running() bool { return a.running.Load() }

// Services returns a snapshot of registrations in init order.
func (a *App) Services() []service.Info { return a.registry.Snapshot() }

// RegisterService adds a service to the registry.
func (a *App) RegisterService(svc service.Service) error {
	a.log.Entry().Debugf("registering service %s", svc.Name())
	return a.registry.Register(svc)
}

// InitializeServices awaits every registered service's init hook in
// registration order, stopping at the first failure.
func (a *App) InitializeServices(ctx context.Context) error {
	a.log.Entry().Infof("initializing %d services", a.registry.Len())
	return a.registry.Initialize(ctx)
}

// PushLayer adds a regular layer to the stack.
func (a *App) PushLayer(l layer.Layer) error {
	return a.stack.PushLayer(l)
}

// PushOverlay adds an overlay to the stack.
func (a *App) PushOverlay(l layer.Layer) error {
	return a.stack.PushOverlay(l)
}

// PopLayer removes a regular layer from the stack.
func (a *App) PopLayer(l layer.Layer) error {
	return a.stack.PopLayer(l)
}

// PopOverlay removes an overlay from the stack.
func (a *App) PopOverlay(l layer.Layer) error {
	return a.stack.PopOverlay(l)
}

// EmitEvent broadcasts an envelope through the relay.
func (a *App) EmitEvent(env *event.Envelope) error {
	return a.relay.Emit(env)
}

// Run enters the tick loop and blocks until Close (or context cancellation)
// is observed at a tick boundary. The first update pass runs synchronously
// before the loop starts yielding between ticks. The return value is the
// process exit code: 0 for a clean shutdown, 1 if any shutdown hook failed.
func (a *App) Run(ctx context.Context) int {
	if !a.running.CompareAndSwap(false, true) {
		a.log.Entry().Error("run called while already running")
		return 1
	}

	a.started = time.Now()
	a.lastTick = a.started
	a.jrnl.Append(journal.Record{
		Type:      journal.RecordAppStarted,
		Component: a.spec.Name,
		Message:   "run loop started",
	})
	_ = a.relay.Emit(event.New(a.spec.Name, event.TypeAppStarted, event.CategoryApplication|event.CategoryLifecycle))

	a.step()

	ticker := time.NewTicker(a.spec.TickInterval)
	defer ticker.Stop()

	for {
		if !a.running.Load() {
			return a.shutdown()
		}
		select {
		case <-ctx.Done():
			a.Close()
		case <-ticker.C:
			if a.running.Load() {
				a.step()
			}
		}
	}
}

// Close requests shutdown. It has no immediate effect: an in-flight tick
// completes normally and the next scheduled tick observes the flag.
func (a *App) Close() {
	if a.running.CompareAndSwap(true, false) {
		a.jrnl.Append(journal.Record{
			Type:      journal.RecordAppCloseRequest,
			Component: a.spec.Name,
		})
	}
}

// Uptime returns the time since the run loop started.
func (a *App) Uptime() time.Duration {
	if a.started.IsZero() {
		return 0
	}
	return time.Since(a.started)
}

// step performs one update pass: elapsed time measurement followed by
// bottom-to-top update propagation.
func (a *App) step() {
	now := time.Now()
	dt := now.Sub(a.lastTick)
	a.lastTick = now

	a.stack.OnUpdate(dt)

	a.collector.ObserveTick(time.Since(now))
	a.jrnl.Append(journal.Record{
		Type:      journal.RecordAppTick,
		Severity:  journal.SeverityDebug,
		Component: a.spec.Name,
		Duration:  dt,
	})
}

// shutdown sequences teardown: services first, then the layer stack. Hook
// failures are captured rather than propagated; they only degrade the exit
// code.
func (a *App) shutdown() int {
	a.jrnl.Append(journal.Record{
		Type:      journal.RecordAppShutdownBegin,
		Component: a.spec.Name,
	})
	_ = a.relay.Emit(event.New(a.spec.Name, event.TypeAppClosing, event.CategoryApplication|event.CategoryLifecycle))

	code := 0

	if err := a.registry.Shutdown(context.Background()); err != nil {
		a.log.WithError(err).Error("service shutdown reported failures")
		code = 1
	}
	if err := a.stack.Shutdown(); err != nil {
		a.log.WithError(err).Error("layer stack shutdown reported failures")
		code = 1
	}

	sev := journal.SeverityInfo
	if code != 0 {
		sev = journal.SeverityWarning
	}
	a.jrnl.Append(journal.Record{
		Type:      journal.RecordAppTerminated,
		Severity:  sev,
		Component: a.spec.Name,
		Message:   "terminated",
		Duration:  time.Since(a.started),
	})
	return code
}

// deliver is the relay's forwarding target: top-to-bottom event propagation
// with consumption accounting.
func (a *App) deliver(env *event.Envelope) {
	a.collector.EnvelopeEmitted(env.Type())
	a.jrnl.Append(journal.Record{
		Type:      journal.RecordEnvelopeEmitted,
		Severity:  journal.SeverityDebug,
		Component: env.Name(),
		Message:   env.String(),
	})

	a.stack.OnEvent(env)

	if env.IsConsumed() {
		a.collector.EnvelopeConsumed(env.Type())
		a.jrnl.Append(journal.Record{
			Type:      journal.RecordEnvelopeConsumed,
			Severity:  journal.SeverityDebug,
			Component: env.Name(),
		})
	}
}

// recordMetrics mirrors journal records into the metrics collector so the
// registry and stack stay free of a metrics dependency.
func (a *App) recordMetrics(rec journal.Record) {
	switch rec.Type {
	case journal.RecordServiceRegistered:
		a.collector.SetServiceStatus(rec.Component, state.StatusRegistered)
	case journal.RecordServiceInitializing:
		a.collector.SetServiceStatus(rec.Component, state.StatusInitializing)
	case journal.RecordServiceInitialized:
		a.collector.SetServiceStatus(rec.Component, state.StatusReady)
		a.collector.ObserveServiceInit(rec.Component, rec.Duration, nil)
	case journal.RecordServiceInitFailed:
		a.collector.SetServiceStatus(rec.Component, state.StatusFailed)
		a.collector.ObserveServiceInit(rec.Component, rec.Duration, errors.New(rec.Error))
	case journal.RecordServiceStopping:
		a.collector.SetServiceStatus(rec.Component, state.StatusStopping)
	case journal.RecordServiceStopped:
		a.collector.SetServiceStatus(rec.Component, state.StatusStopped)
		a.collector.ObserveServiceShutdown(rec.Component, rec.Duration, nil)
	case journal.RecordServiceStopFailed:
		a.collector.SetServiceStatus(rec.Component, state.StatusStopFailed)
		a.collector.ObserveServiceShutdown(rec.Component, rec.Duration, errors.New(rec.Error))
	case journal.RecordEnvelopeSuppressed:
		a.collector.EnvelopeSuppressed()
	case journal.RecordLayerPushed, journal.RecordLayerPopped, journal.RecordStackShutdown:
		a.collector.SetLayerCounts(a.stack.RegularLen(), a.stack.OverlayLen())
	}
}
