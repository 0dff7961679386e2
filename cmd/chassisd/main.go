// Package main implements chassisd, the reference daemon built on the
// chassis runtime kernel. It wires the built-in scheduler and resource
// monitor into an application and runs the tick loop until a signal or
// close request arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/osmium-labs/chassis/internal/builtin/scheduler"
	"github.com/osmium-labs/chassis/internal/builtin/sysmon"
	"github.com/osmium-labs/chassis/internal/config"
	"github.com/osmium-labs/chassis/internal/kernel/app"
	"github.com/osmium-labs/chassis/internal/kernel/journal"
	"github.com/osmium-labs/chassis/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chassisd: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LoggerConfig()).Named(cfg.App.Name)

	a, err := app.New(app.Spec{
		Name:         cfg.App.Name,
		TickInterval: cfg.App.TickInterval.Std(),
	},
		app.WithLogger(log),
		app.WithMetricsNamespace(cfg.Metrics.Namespace),
	)
	if err != nil {
		log.WithError(err).Fatal("create application")
	}

	// Mirror kernel journal records into the log.
	a.Journal().Subscribe(journal.Bridge(log))

	sched := scheduler.New(log.Named(scheduler.ServiceName))
	for _, j := range cfg.Scheduler.Jobs {
		if err := sched.Add(j.Name, j.Spec); err != nil {
			log.WithError(err).Fatal("add scheduled job")
		}
	}
	if err := a.RegisterService(sched); err != nil {
		log.WithError(err).Fatal("register scheduler")
	}

	if err := a.InitializeServices(context.Background()); err != nil {
		log.WithError(err).Error("service initialization failed")
		os.Exit(1)
	}

	if err := a.PushLayer(scheduler.NewLayer(sched, a.Relay())); err != nil {
		log.WithError(err).Fatal("push scheduler layer")
	}
	if cfg.Monitor.Enabled {
		mon := sysmon.New(a.Metrics(), a.Relay(), log.Named(sysmon.LayerName), cfg.Monitor.SampleInterval.Std())
		if err := a.PushOverlay(mon); err != nil {
			log.WithError(err).Fatal("push resource monitor")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Entry().Infof("chassisd starting: tick=%s jobs=%d", cfg.App.TickInterval.Std(), len(cfg.Scheduler.Jobs))
	os.Exit(a.Run(ctx))
}
