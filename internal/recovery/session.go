package recovery

import (
	"context"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"github.com/google/uuid"
)

// Session owns the recovery state of one monitored system: its error log,
// its degradation level and the collaborators used while recovering. A
// session is not safe for concurrent recovery calls; read-only accessors may
// be used from other goroutines.
type Session struct {
	id       string
	chip     string
	cfg      Config
	th       monitor.Thresholds
	log      *ErrorLog
	degrader Degrader
	policies map[monitor.ErrorKind]policy

	sleeper   Sleeper
	clock     Clock
	notifier  Notifier
	registers monitor.RegisterReader
	logger    logger.Logger
}

// Option configures a Session.
type Option func(*Session)

func WithSleeper(s Sleeper) Option { return func(ss *Session) { ss.sleeper = s } }

func WithClock(c Clock) Option { return func(ss *Session) { ss.clock = c } }

func WithNotifier(n Notifier) Option { return func(ss *Session) { ss.notifier = n } }

func WithLogger(l logger.Logger) Option { return func(ss *Session) { ss.logger = l } }

// WithChip labels log lines and events with the chip the session serves.
func WithChip(chip string) Option { return func(ss *Session) { ss.chip = chip } }

// WithRegisters lets the invalid-data strategy re-read registers from
// hardware instead of only re-validating cached values.
func WithRegisters(r monitor.RegisterReader) Option { return func(ss *Session) { ss.registers = r } }

func NewSession(th monitor.Thresholds, cfg Config, opts ...Option) (*Session, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if err := th.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		th:       th,
		sleeper:  ContextSleeper{},
		clock:    SystemClock{},
		notifier: noopNotifier{},
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = NewErrorLog(cfg.LogCapacity, s.clock)
	s.policies = s.basicPolicies()
	if s.chip != "" {
		s.logger = s.logger.With("chip", s.chip)
	}

	s.logger.Debug().
		Str("session", s.id).
		Int("log_capacity", cfg.LogCapacity).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Recovery session initialized")

	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Chip() string { return s.chip }

func (s *Session) Thresholds() monitor.Thresholds { return s.th }

func (s *Session) Log() *ErrorLog { return s.log }

func (s *Session) Level() Level { return s.degrader.Level() }

func (s *Session) Degraded() bool { return s.degrader.Degraded() }

// record appends to the error log, mirrors the entry to the logger and
// forwards it to the notifier.
func (s *Session) record(kind monitor.ErrorKind, description string, retryCount int, success bool) LogEntry {
	entry := s.log.Append(kind, description, retryCount, success)

	var ev *logger.LogEvent
	if success {
		ev = s.logger.Info()
	} else {
		ev = s.logger.Warn()
	}
	ev.Int("error_code", int(kind)).
		Str("error_kind", kind.String()).
		Int("retry_count", retryCount).
		Bool("success", success).
		Msg(entry.Description)

	s.notifier.Notify(Event{
		ID:          uuid.NewString(),
		SessionID:   s.id,
		Chip:        s.chip,
		Type:        EventLogged,
		Kind:        kind,
		KindName:    kind.String(),
		Description: entry.Description,
		RetryCount:  retryCount,
		Success:     success,
		Level:       s.degrader.Level(),
		Timestamp:   entry.Timestamp,
	})

	return entry
}

// UpdateDegradation scores the state and moves the degradation level. A
// change is logged once with the actions of the new level; re-evaluating at
// the same level records nothing.
func (s *Session) UpdateDegradation(state *monitor.SystemState) Transition {
	health := AssessHealth(s.th, state)
	tr := s.degrader.Evaluate(health.Score)

	s.logger.Debug().
		Int("health_score", health.Score).
		Int("error_penalty", health.ErrorPenalty).
		Int("voltage_penalty", health.VoltagePenalty).
		Int("temperature_penalty", health.TemperaturePenalty).
		Int("current_penalty", health.CurrentPenalty).
		Int("level", int(tr.To)).
		Bool("changed", tr.Changed).
		Msg("Degradation assessed")

	if !tr.Changed {
		return tr
	}

	s.logger.Warn().
		Str("from", tr.From.String()).
		Str("to", tr.To.String()).
		Strs("actions", tr.To.Actions()).
		Msg("Degradation level changed")

	entry := s.record(monitor.ErrorNone, tr.To.Description(), 0, true)
	s.notifier.Notify(Event{
		ID:          uuid.NewString(),
		SessionID:   s.id,
		Chip:        s.chip,
		Type:        EventDegradation,
		Kind:        monitor.ErrorNone,
		KindName:    monitor.ErrorNone.String(),
		Description: entry.Description,
		Success:     true,
		Level:       tr.To,
		Timestamp:   entry.Timestamp,
	})

	return tr
}

// Summary reports recovery statistics for the session.
type Summary struct {
	SessionID            string
	TotalErrors          int
	SuccessfulRecoveries int
	SuccessRate          float64
	Level                Level
	Degraded             bool
	Recent               []LogEntry
}

func (s *Session) Summary() Summary {
	return Summary{
		SessionID:            s.id,
		TotalErrors:          s.log.TotalErrors(),
		SuccessfulRecoveries: s.log.SuccessfulRecoveries(),
		SuccessRate:          s.log.SuccessRate(),
		Level:                s.degrader.Level(),
		Degraded:             s.degrader.Degraded(),
		Recent:               s.log.Last(s.cfg.SummarySize),
	}
}

func (s *Session) wait(ctx context.Context, d time.Duration, kind monitor.ErrorKind, attempt int) error {
	s.logger.Debug().
		Str("error_kind", kind.String()).
		Int("attempt", attempt).
		Dur("delay", d).
		Msg("Waiting before next attempt")
	return s.sleeper.Sleep(ctx, d)
}
