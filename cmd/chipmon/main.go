package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/chipmon/internal/chip"
	"codeberg.org/mutker/chipmon/internal/config"
	"codeberg.org/mutker/chipmon/internal/diag"
	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/events"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/metrics"
	"codeberg.org/mutker/chipmon/internal/pid"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"codeberg.org/mutker/chipmon/internal/supervisor"
	"codeberg.org/mutker/chipmon/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.SetLogLevel(cfg.Level())
	logger.Debug().Str("mode", cfg.Mode.String()).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	code := 0
	switch cfg.Mode {
	case config.ModeSelfTest:
		code = selfTest(ctx, cfg)
	case config.ModeSimulate:
		if err := simulate(ctx, cfg); err != nil {
			logger.Error().Err(err).Msg("Simulation failed")
			code = 1
		}
	default:
		if err := run(ctx, cfg); err != nil {
			logger.ErrorWithCode(errors.New().Wrap(errors.ErrMainLoop, err)).Msg("Monitoring stopped")
			code = 1
		}
	}

	cancel()
	os.Exit(code)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Default()

	pidPath := pid.Path(cfg.PIDFile)
	if err := pid.Write(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	backend, err := hw.Open(cfg.HardwareConfig())
	if err != nil {
		return err
	}
	defer backend.Close()

	var regmap *hw.RegisterMap
	if cfg.Monitor.RegisterMap != "" {
		if regmap, err = hw.LoadRegisterMap(cfg.Monitor.RegisterMap); err != nil {
			return err
		}
	}

	store, err := metrics.NewService(cfg.MetricsConfig(), log.With("component", "metrics"))
	if err != nil {
		return err
	}
	defer store.Close()

	collectors := []metrics.Collector{store}
	var notifiers recovery.Notifiers

	if cfg.Telemetry.Enabled {
		exporter := telemetry.NewExporter(cfg.Telemetry.Namespace)
		collectors = append(collectors, exporter)
		notifiers = append(notifiers, exporter)

		server := telemetry.NewServer(exporter, cfg.Telemetry.Listen, log.With("component", "telemetry"))
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("Telemetry server failed")
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("Telemetry server shutdown failed")
			}
		}()
	}

	if cfg.MQTT.Enabled {
		publisher, err := events.Connect(cfg.EventsConfig(), log.With("component", "events"))
		if err != nil {
			return err
		}
		notifiers = append(notifiers, publisher)

		pubCtx, stopPublisher := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			publisher.Run(pubCtx)
			close(done)
		}()
		defer func() {
			stopPublisher()
			<-done
			publisher.Close()
		}()
	}

	sessionOpts := []recovery.Option{recovery.WithLogger(log.With("component", "recovery"))}
	if len(notifiers) > 0 {
		sessionOpts = append(sessionOpts, recovery.WithNotifier(notifiers))
	}

	sys, err := chip.New(cfg.Monitor.Chips, cfg.ThresholdsConfig(), cfg.RecoveryConfig(),
		chip.WithRegisterMap(regmap),
		chip.WithSessionOptions(sessionOpts...))
	if err != nil {
		return err
	}

	group, err := supervisor.NewGroup(cfg.SupervisorConfig(), sys, backend,
		supervisor.WithCollector(metrics.Multi(collectors...)),
		supervisor.WithLogger(log.With("component", "supervisor")))
	if err != nil {
		return err
	}

	logger.Info().
		Int("chips", cfg.Monitor.Chips).
		Str("backend", cfg.Hardware.Backend).
		Dur("interval", cfg.Monitor.Interval).
		Msg("Monitoring started")

	return group.Run(ctx)
}

func selfTest(ctx context.Context, cfg *config.Config) int {
	report := diag.Run(ctx, cfg.ThresholdsConfig(), cfg.RecoveryConfig(), logger.Default())

	for _, check := range report.Checks {
		ev := logger.Info()
		if !check.Passed {
			ev = logger.Error()
		}
		ev.Str("check", check.Name).
			Bool("passed", check.Passed).
			Str("detail", check.Detail).
			Dur("duration", check.Duration).
			Msg("Self-test check")
	}

	fmt.Printf("Self-test: %d/%d checks passed\n", report.Passed, report.Total)
	if !report.OK() {
		return 1
	}
	return 0
}

// resetSleeper clears an injected interface failure the first time recovery
// waits for the interface to settle.
type resetSleeper struct {
	sim *hw.Simulator
}

func (r resetSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	r.sim.FailReads(nil)
	return ctx.Err()
}

func simulate(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()
	log := logger.Default()
	th := cfg.ThresholdsConfig()
	kind := cfg.Fault()

	sim := hw.NewSimulator(th.Nominal())

	sys, err := chip.New(1, th, cfg.RecoveryConfig(),
		chip.WithSessionOptions(
			recovery.WithSleeper(resetSleeper{sim: sim}),
			recovery.WithLogger(log.With("component", "recovery"))))
	if err != nil {
		return err
	}
	c, _ := sys.Chip(0)

	if !th.InjectFault(c.State, kind) {
		// Interface faults cannot be expressed as a sensor reading
		sim.FailReads(errFactory.WithMessage(errors.ErrReadSensors, kind.Message()))
		c.State.ErrorCount++
	}
	sim.SetReading(c.State.SensorReading)

	logger.Info().
		Str("fault", kind.String()).
		Float64("voltage", c.State.Voltage).
		Float64("temperature", c.State.Temperature).
		Float64("current", c.State.Current).
		Msg("Fault injected")

	sup, err := supervisor.New(cfg.SupervisorConfig(), c.State, c.Session, sim,
		supervisor.WithSleeper(recovery.NoopSleeper{}),
		supervisor.WithLogger(log.With("component", "supervisor")))
	if err != nil {
		return err
	}

	cycles, stable, err := sup.RunUntilStable(ctx, cfg.Simulate.Cycles)

	summary := c.Session.Summary()
	fmt.Printf("Fault %s: %d cycle(s), stable=%t, status=%s\n", kind, cycles, stable, c.State.Status)
	fmt.Printf("Errors logged: %d, successful recoveries: %d (%.1f%%), degradation: %s\n",
		summary.TotalErrors, summary.SuccessfulRecoveries, summary.SuccessRate, summary.Level)
	for _, e := range summary.Recent {
		fmt.Printf("  %s %-16s retries=%d success=%t %s\n",
			e.Timestamp.Format(time.RFC3339), e.Kind, e.RetryCount, e.Success, e.Description)
	}

	if err != nil {
		return err
	}
	if !stable {
		return errFactory.WithData(supervisor.ErrUnstable, c.State.Status.String())
	}
	return nil
}
