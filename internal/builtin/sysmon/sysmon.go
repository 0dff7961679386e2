// Package sysmon provides a resource monitor overlay. It samples host CPU
// and memory from its update hook at a bounded rate, records the readings
// into the kernel metrics collector, and announces each sample as an
// envelope.
package sysmon

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/layer"
	"github.com/osmium-labs/chassis/internal/kernel/metrics"
	"github.com/osmium-labs/chassis/internal/kernel/relay"
	"github.com/osmium-labs/chassis/pkg/logger"
)

// LayerName identifies the monitor in the stack.
const LayerName = "sysmon"

// DefaultSampleInterval bounds how often the monitor samples the host.
const DefaultSampleInterval = 5 * time.Second

// Layer is the resource monitor. Push it as an overlay so samples are taken
// after all regular layers have updated.
type Layer struct {
	collector *metrics.Collector
	relay     *relay.Relay
	log       *logger.Logger
	interval  time.Duration
	last      time.Time
	clock     func() time.Time
}

var _ layer.Layer = (*Layer)(nil)

// New creates a monitor recording into the given collector. The relay is
// optional; when set, every sample also emits a resource.sample envelope.
func New(collector *metrics.Collector, r *relay.Relay, log *logger.Logger, interval time.Duration) *Layer {
	if log == nil {
		log = logger.NewDefault(LayerName)
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Layer{
		collector: collector,
		relay:     r,
		log:       log,
		interval:  interval,
		clock:     time.Now,
	}
}

// Name implements layer.Layer.
func (l *Layer) Name() string { return LayerName }

// OnAttach primes the CPU sampler so the first reading has a baseline.
func (l *Layer) OnAttach() error {
	_, _ = cpu.Percent(0, false)
	l.last = time.Time{}
	return nil
}

// OnDetach implements layer.Layer.
func (l *Layer) OnDetach() error { return nil }

// OnUpdate samples the host at most once per interval.
func (l *Layer) OnUpdate(time.Duration) {
	now := l.clock()
	if !l.last.IsZero() && now.Sub(l.last) < l.interval {
		return
	}
	l.last = now
	l.sample()
}

func (l *Layer) sample() {
	var cpuPct float64
	if pcts, err := cpu.Percent(0, false); err != nil {
		l.log.WithError(err).Warn("cpu sample failed")
	} else if len(pcts) > 0 {
		cpuPct = pcts[0]
	}

	var used uint64
	if vm, err := mem.VirtualMemory(); err != nil {
		l.log.WithError(err).Warn("memory sample failed")
	} else {
		used = vm.Used
	}

	if l.collector != nil {
		l.collector.SampleResources(cpuPct, used)
	}
	if l.relay != nil {
		_ = l.relay.Emit(event.New(LayerName, event.TypeResourceSample, event.CategoryResource))
	}
}

// OnEvent implements layer.Layer. The monitor only produces envelopes.
func (l *Layer) OnEvent(*event.Envelope) {}
