// Package scheduler provides a cooperative cron scheduler built on the
// kernel: a service that tracks job schedules and a layer that fires due
// jobs as envelopes on the tick thread. No goroutine of its own runs; job
// firing shares the single-threaded update pass.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/osmium-labs/chassis/internal/kernel/event"
	"github.com/osmium-labs/chassis/internal/kernel/layer"
	"github.com/osmium-labs/chassis/internal/kernel/relay"
	"github.com/osmium-labs/chassis/pkg/logger"
)

// ServiceName is the identity the scheduler registers under.
const ServiceName = "scheduler"

type job struct {
	name     string
	spec     string
	schedule cron.Schedule
	next     time.Time
}

// Service holds cron jobs and computes when they come due. Jobs are armed
// by the init hook and disarmed by shutdown.
type Service struct {
	log   *logger.Logger
	jobs  []*job
	armed bool
}

// New creates an empty scheduler service.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault(ServiceName)
	}
	return &Service{log: log}
}

// Name implements service.Service.
func (s *Service) Name() string { return ServiceName }

// Add registers a job under a unique name with a standard five-field cron
// spec. Call before InitializeServices; jobs added later stay disarmed
// until the next init.
func (s *Service) Add(name, spec string) error {
	for _, j := range s.jobs {
		if j.name == name {
			return fmt.Errorf("job %s already scheduled", name)
		}
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse schedule for job %s: %w", name, err)
	}

	s.jobs = append(s.jobs, &job{name: name, spec: spec, schedule: schedule})
	return nil
}

// Jobs returns the job names in add order.
func (s *Service) Jobs() []string {
	out := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.name
	}
	return out
}

// OnInitialize arms every job from the current time.
func (s *Service) OnInitialize(context.Context) error {
	now := time.Now()
	for _, j := range s.jobs {
		j.next = j.schedule.Next(now)
	}
	s.armed = true
	s.log.Entry().Infof("scheduler armed with %d jobs", len(s.jobs))
	return nil
}

// OnShutdown disarms all jobs.
func (s *Service) OnShutdown(context.Context) error {
	s.armed = false
	for _, j := range s.jobs {
		j.next = time.Time{}
	}
	return nil
}

// Firing describes one job coming due.
type Firing struct {
	Job string
	At  time.Time
}

// Due returns the jobs due at or before now and re-arms them from now.
// Runs missed across several ticks collapse into a single firing. Before
// the service is initialized no job is ever due.
func (s *Service) Due(now time.Time) []Firing {
	if !s.armed {
		return nil
	}

	var fired []Firing
	for _, j := range s.jobs {
		if j.next.IsZero() || j.next.After(now) {
			continue
		}
		fired = append(fired, Firing{Job: j.name, At: j.next})
		j.next = j.schedule.Next(now)
	}
	return fired
}

// Layer polls the scheduler service on every update and emits a
// schedule.fired envelope per due job through the relay.
type Layer struct {
	svc   *Service
	relay *relay.Relay
	clock func() time.Time
}

var _ layer.Layer = (*Layer)(nil)

// NewLayer creates the emitting layer for a scheduler service.
func NewLayer(svc *Service, r *relay.Relay) *Layer {
	return &Layer{svc: svc, relay: r, clock: time.Now}
}

// Name implements layer.Layer.
func (l *Layer) Name() string { return ServiceName }

// OnAttach implements layer.Layer.
func (l *Layer) OnAttach() error { return nil }

// OnDetach implements layer.Layer.
func (l *Layer) OnDetach() error { return nil }

// OnUpdate fires due jobs. Emission is synchronous; propagation of each
// envelope completes before the next job fires.
func (l *Layer) OnUpdate(time.Duration) {
	now := l.clock()
	for _, f := range l.svc.Due(now) {
		_ = l.relay.Emit(event.New(f.Job, event.TypeScheduleFired, event.CategoryTimer))
	}
}

// OnEvent implements layer.Layer. The scheduler only produces envelopes.
func (l *Layer) OnEvent(*event.Envelope) {}
