package supervisor

import (
	"context"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/metrics"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
)

// Hardware is what a supervisor reads from and writes to.
type Hardware interface {
	monitor.RegisterIO
	hw.SensorSource
}

// Result describes one monitoring cycle.
type Result struct {
	Cycle             int
	Status            monitor.Status
	Critical          bool
	Reasons           []monitor.CriticalReason
	Kind              monitor.ErrorKind
	ValidRegisters    int
	CommFailure       bool
	RecoveryAttempted bool
	Recovered         bool
	Shutdown          bool
	HealthScore       int
	Level             recovery.Level
}

// Supervisor drives the monitoring cycle of one chip.
type Supervisor struct {
	cfg       Config
	th        monitor.Thresholds
	state     *monitor.SystemState
	session   *recovery.Session
	hw        Hardware
	collector metrics.Collector
	sleeper   recovery.Sleeper
	logger    logger.Logger
	cycles    int
}

type Option func(*Supervisor)

func WithCollector(c metrics.Collector) Option { return func(s *Supervisor) { s.collector = c } }

func WithLogger(l logger.Logger) Option { return func(s *Supervisor) { s.logger = l } }

// WithSleeper sets how RunUntilStable waits between cycles.
func WithSleeper(sl recovery.Sleeper) Option { return func(s *Supervisor) { s.sleeper = sl } }

func New(cfg Config, state *monitor.SystemState, session *recovery.Session, h Hardware, opts ...Option) (*Supervisor, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if state == nil || session == nil || h == nil {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "state, session and hardware are required")
	}

	s := &Supervisor{
		cfg:     cfg,
		th:      session.Thresholds(),
		state:   state,
		session: session,
		hw:      h,
		sleeper: recovery.ContextSleeper{},
		logger:  logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.collector == nil {
		s.collector = metrics.Noop()
	}
	if chip := session.Chip(); chip != "" {
		s.logger = s.logger.With("chip", chip)
	}

	return s, nil
}

func (s *Supervisor) State() *monitor.SystemState { return s.state }

func (s *Supervisor) Session() *recovery.Session { return s.session }

func (s *Supervisor) Cycles() int { return s.cycles }

// Tick runs one cycle: sample sensors, scan registers, classify, recover
// when the status is not operational or a critical condition holds, and
// shut down when recovery fails. A snapshot is recorded every cycle.
func (s *Supervisor) Tick(ctx context.Context) (Result, error) {
	errFactory := errors.New()

	if !s.state.Active {
		return Result{Cycle: s.cycles, Status: s.state.Status, Shutdown: true}, errFactory.New(ErrInactive)
	}
	if err := ctx.Err(); err != nil {
		return Result{Cycle: s.cycles}, errFactory.Wrap(ErrCancelled, err)
	}

	s.cycles++
	res := Result{Cycle: s.cycles}

	reading, err := s.hw.ReadSensors(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return res, errFactory.Wrap(ErrCancelled, ctx.Err())
		}
		res.CommFailure = true
		s.logger.ErrorWithCode(errFactory.Wrap(errors.ErrReadSensors, err)).Msg("Sensor read failed")
	} else {
		s.state.SensorReading = reading
	}

	valid, err := monitor.ScanRegisters(s.state, s.hw)
	if err != nil {
		res.CommFailure = true
		s.logger.ErrorWithCode(errFactory.Wrap(errors.ErrScanRegisters, err)).Msg("Register scan incomplete")
	}
	res.ValidRegisters = valid

	status := s.th.Classify(s.state)
	if res.CommFailure && monitor.StatusCommunicationError.Severity() > status.Severity() {
		status = monitor.StatusCommunicationError
		s.state.Status = status
	}

	healthy := status == monitor.StatusNormal && !res.CommFailure && valid == len(s.state.Registers)
	if healthy && s.state.ErrorCount > 0 {
		s.state.ErrorCount--
	}

	res.Critical, res.Reasons = s.th.CheckCritical(s.state)
	if !status.Operational() || res.Critical {
		s.state.ErrorCount++
		res.Critical, res.Reasons = s.th.CheckCritical(s.state)
		res.Kind = s.th.ErrorKindForStatus(status, s.state.Reading())
		s.recover(ctx, &res)
	} else {
		s.session.UpdateDegradation(s.state)
	}

	res.Status = s.state.Status
	res.HealthScore = recovery.HealthScore(s.th, s.state)
	res.Level = s.session.Level()

	s.logCycle(res)
	s.record(ctx, res)

	return res, nil
}

func (s *Supervisor) recover(ctx context.Context, res *Result) {
	s.logger.Warn().
		Str("status", s.state.Status.String()).
		Str("error_kind", res.Kind.String()).
		Bool("critical", res.Critical).
		Interface("reasons", res.Reasons).
		Msg("Fault detected, starting recovery")

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RecoveryTimeout)
	defer cancel()

	res.RecoveryAttempted = true
	res.Recovered = s.session.ComprehensiveRecover(rctx, s.state, res.Kind)

	if res.Recovered {
		if act, ok := s.hw.(hw.Actuator); ok {
			if err := act.ApplyReading(ctx, s.state.Reading()); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to apply recovered operating point")
			}
		}
		return
	}

	res.Shutdown = true
	if err := monitor.EmergencyShutdown(s.state, s.hw); err != nil {
		s.logger.ErrorWithCode(errors.New().Wrap(errors.ErrEmergencyShutdown, err)).Msg("Emergency shutdown incomplete")
		return
	}
	s.logger.Error().Msg("Recovery failed, emergency shutdown performed")
}

func (s *Supervisor) logCycle(res Result) {
	ev := s.logger.Debug()
	if !res.Status.Operational() {
		ev = s.logger.Info()
	}
	ev.Int("cycle", res.Cycle).
		Str("status", res.Status.String()).
		Float64("voltage", s.state.Voltage).
		Float64("temperature", s.state.Temperature).
		Float64("current", s.state.Current).
		Int("valid_registers", res.ValidRegisters).
		Int("error_count", s.state.ErrorCount).
		Int("health_score", res.HealthScore).
		Str("level", res.Level.String()).
		Msg("")
}

func (s *Supervisor) record(ctx context.Context, res Result) {
	snap := &metrics.Snapshot{
		Timestamp:         time.Now(),
		Chip:              s.session.Chip(),
		Voltage:           s.state.Voltage,
		Temperature:       s.state.Temperature,
		Current:           s.state.Current,
		Status:            int(res.Status),
		ErrorCount:        s.state.ErrorCount,
		ValidRegisters:    monitor.CountValidRegisters(s.state),
		HealthScore:       res.HealthScore,
		DegradationLevel:  int(res.Level),
		Active:            s.state.Active,
		RecoveryAttempted: res.RecoveryAttempted,
		Recovered:         res.Recovered,
	}
	if err := s.collector.Record(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record snapshot")
	}
}

// Run ticks every interval until ctx is cancelled or the chip has been shut
// down.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := s.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if res.Shutdown {
				return errors.New().New(ErrShutdown)
			}
		}
	}
}

// RunUntilStable ticks until a cycle ends Normal, at most maxCycles times.
// It returns the cycles run and whether the chip stabilised.
func (s *Supervisor) RunUntilStable(ctx context.Context, maxCycles int) (int, bool, error) {
	for n := 1; n <= maxCycles; n++ {
		res, err := s.Tick(ctx)
		if err != nil {
			return n - 1, false, err
		}
		if res.Status == monitor.StatusNormal && !res.CommFailure {
			return n, true, nil
		}
		if res.Shutdown {
			return n, false, errors.New().New(ErrShutdown)
		}
		if n < maxCycles {
			if err := s.sleeper.Sleep(ctx, s.cfg.Interval); err != nil {
				return n, false, errors.New().Wrap(ErrCancelled, err)
			}
		}
	}
	return maxCycles, false, nil
}
