package telemetry

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/metrics"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter publishes snapshots and recovery events as Prometheus metrics and
// keeps the latest per-chip health for the HTTP server. It satisfies both
// metrics.Collector and recovery.Notifier.
type Exporter struct {
	registry *prometheus.Registry

	voltage        *prometheus.GaugeVec
	temperature    *prometheus.GaugeVec
	current        *prometheus.GaugeVec
	status         *prometheus.GaugeVec
	healthScore    *prometheus.GaugeVec
	level          *prometheus.GaugeVec
	validRegisters *prometheus.GaugeVec
	errorCount     *prometheus.GaugeVec
	active         *prometheus.GaugeVec
	cycles         *prometheus.CounterVec
	recoveries     *prometheus.CounterVec
	logged         *prometheus.CounterVec
	transitions    *prometheus.CounterVec

	mu    sync.RWMutex
	chips map[string]ChipHealth
}

// NewExporter registers all collectors on a private registry.
func NewExporter(namespace string) *Exporter {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"chip"})
	}

	return &Exporter{
		registry:       reg,
		voltage:        gauge("voltage_volts", "Last measured supply voltage"),
		temperature:    gauge("temperature_celsius", "Last measured die temperature"),
		current:        gauge("current_amperes", "Last measured supply current"),
		status:         gauge("status", "Last classified status code (0 normal .. 6 communication error)"),
		healthScore:    gauge("health_score", "Health score from 0 to 100"),
		level:          gauge("degradation_level", "Degradation level from 0 normal to 3 critical"),
		validRegisters: gauge("valid_registers", "Registers that passed their last validation"),
		errorCount:     gauge("error_count", "Consecutive error counter of the chip"),
		active:         gauge("active", "1 while the chip is operational, 0 after emergency shutdown"),
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitoring cycles observed",
		}, []string{"chip"}),
		recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Recovery runs by outcome",
		}, []string{"chip", "result"}),
		logged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_logged_total",
			Help:      "Error log entries by error kind",
		}, []string{"chip", "kind"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradation_transitions_total",
			Help:      "Degradation level changes by target level",
		}, []string{"chip", "level"}),
		chips: make(map[string]ChipHealth),
	}
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Record implements metrics.Collector.
func (e *Exporter) Record(ctx context.Context, s *metrics.Snapshot) error {
	errFactory := errors.New()

	if s == nil {
		return errFactory.New(ErrInvalidMetrics)
	}
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	chip := s.Chip
	e.voltage.WithLabelValues(chip).Set(s.Voltage)
	e.temperature.WithLabelValues(chip).Set(s.Temperature)
	e.current.WithLabelValues(chip).Set(s.Current)
	e.status.WithLabelValues(chip).Set(float64(s.Status))
	e.healthScore.WithLabelValues(chip).Set(float64(s.HealthScore))
	e.level.WithLabelValues(chip).Set(float64(s.DegradationLevel))
	e.validRegisters.WithLabelValues(chip).Set(float64(s.ValidRegisters))
	e.errorCount.WithLabelValues(chip).Set(float64(s.ErrorCount))
	e.active.WithLabelValues(chip).Set(boolToFloat(s.Active))
	e.cycles.WithLabelValues(chip).Inc()

	if s.RecoveryAttempted {
		result := "failure"
		if s.Recovered {
			result = "success"
		}
		e.recoveries.WithLabelValues(chip, result).Inc()
	}

	e.mu.Lock()
	e.chips[chip] = ChipHealth{
		Chip:             chip,
		Status:           classify(s),
		MonitorStatus:    monitor.Status(s.Status).String(),
		HealthScore:      s.HealthScore,
		DegradationLevel: s.DegradationLevel,
		Active:           s.Active,
		UpdatedAt:        s.Timestamp,
	}
	e.mu.Unlock()

	return nil
}

func (*Exporter) Close() error {
	return nil
}

// Notify implements recovery.Notifier.
func (e *Exporter) Notify(ev recovery.Event) {
	switch ev.Type {
	case recovery.EventLogged:
		e.logged.WithLabelValues(ev.Chip, ev.KindName).Inc()
	case recovery.EventDegradation:
		e.transitions.WithLabelValues(ev.Chip, strconv.Itoa(int(ev.Level))).Inc()
	}
}

// Health returns the latest per-chip health sorted by chip, and the worst
// status among them. No observations count as healthy.
func (e *Exporter) Health() (HealthStatus, []ChipHealth) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	overall := StatusHealthy
	chips := make([]ChipHealth, 0, len(e.chips))
	for _, c := range e.chips {
		chips = append(chips, c)
		if c.Status == StatusCritical {
			overall = StatusCritical
		} else if c.Status == StatusDegraded && overall != StatusCritical {
			overall = StatusDegraded
		}
	}
	sort.Slice(chips, func(i, j int) bool { return chips[i].Chip < chips[j].Chip })

	return overall, chips
}

func classify(s *metrics.Snapshot) HealthStatus {
	switch {
	case !s.Active,
		s.DegradationLevel >= int(recovery.LevelCritical),
		monitor.Status(s.Status) == monitor.StatusCritical:
		return StatusCritical
	case s.DegradationLevel > int(recovery.LevelNormal),
		monitor.Status(s.Status) != monitor.StatusNormal:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
