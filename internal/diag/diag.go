// Package diag runs the built-in validation battery against a set of
// thresholds, using the simulator and a non-sleeping recovery session.
package diag

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
)

const epsilon = 0.001

const ErrCheckFailed = errors.ErrorCode("diag_check_failed")

// Check is the outcome of one named validation.
type Check struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Report struct {
	Checks []Check `json:"checks"`
	Passed int     `json:"passed"`
	Total  int     `json:"total"`
}

func (r Report) OK() bool {
	return r.Passed == r.Total
}

func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

type runner struct {
	th  monitor.Thresholds
	cfg recovery.Config
}

// Run executes every check in order and logs each result.
func Run(ctx context.Context, th monitor.Thresholds, cfg recovery.Config, log logger.Logger) Report {
	r := runner{th: th, cfg: cfg}

	checks := []check{
		{"voltage_range", r.voltageRange},
		{"temperature_range", r.temperatureRange},
		{"current_range", r.currentRange},
		{"status_determination", r.statusDetermination},
		{"critical_conditions", r.criticalConditions},
		{"register_validation", r.registerValidation},
		{"register_scan", r.registerScan},
		{"error_messages", r.errorMessages},
		{"single_recovery", r.singleRecovery},
		{"comprehensive_recovery", r.comprehensiveRecovery},
		{"emergency_shutdown", r.emergencyShutdown},
		{"edge_cases", r.edgeCases},
	}

	var report Report
	for _, c := range checks {
		start := time.Now()
		err := c.fn(ctx)
		res := Check{Name: c.name, Passed: err == nil, Duration: time.Since(start)}
		if err != nil {
			res.Detail = err.Error()
			log.Warn().Str("check", c.name).Str("detail", res.Detail).Msg("Self-test check failed")
		} else {
			log.Info().Str("check", c.name).Msg("Self-test check passed")
		}

		report.Checks = append(report.Checks, res)
		report.Total++
		if res.Passed {
			report.Passed++
		}
	}

	return report
}

type expectation struct {
	ok   bool
	want bool
	what string
}

func expect(cases ...expectation) error {
	for _, c := range cases {
		if c.ok != c.want {
			return failf("%s: got %t, want %t", c.what, c.ok, c.want)
		}
	}
	return nil
}

func failf(format string, args ...any) error {
	return errors.New().WithMessage(ErrCheckFailed, fmt.Sprintf(format, args...))
}

func (r runner) voltageRange(context.Context) error {
	t := r.th
	return expect(
		expectation{t.VoltageOK(t.NominalVoltage), true, "nominal voltage"},
		expectation{t.VoltageOK(t.MinVoltage), true, "minimum voltage"},
		expectation{t.VoltageOK(t.MaxVoltage), true, "maximum voltage"},
		expectation{t.VoltageOK(t.MinVoltage - 0.1), false, "below minimum"},
		expectation{t.VoltageOK(t.MaxVoltage + 0.1), false, "above maximum"},
	)
}

func (r runner) temperatureRange(context.Context) error {
	t := r.th
	return expect(
		expectation{t.TemperatureOK(t.TempNormal), true, "normal temperature"},
		expectation{t.TemperatureOK(t.TempWarning), true, "warning threshold"},
		expectation{t.TemperatureOK(t.TempCritical), true, "critical threshold"},
		expectation{t.TemperatureOK(t.TempCritical + 1), false, "above critical"},
	)
}

func (r runner) currentRange(context.Context) error {
	t := r.th
	return expect(
		expectation{t.CurrentOK(t.NominalCurrent), true, "nominal current"},
		expectation{t.CurrentOK(t.MinCurrent), true, "minimum current"},
		expectation{t.CurrentOK(t.MaxCurrent), true, "maximum current"},
		expectation{t.CurrentOK(t.MinCurrent - 0.01), false, "below minimum"},
		expectation{t.CurrentOK(t.MaxCurrent + 0.1), false, "above maximum"},
		expectation{t.CurrentOK(-0.1), false, "negative current"},
	)
}

func (r runner) statusDetermination(context.Context) error {
	t := r.th
	nominal := t.Nominal()

	cases := []struct {
		what string
		r    monitor.SensorReading
		want monitor.Status
	}{
		{"nominal", nominal, monitor.StatusNormal},
		{"low voltage", monitor.SensorReading{Voltage: t.MinVoltage - 0.5, Temperature: nominal.Temperature, Current: nominal.Current}, monitor.StatusVoltageError},
		{"warm", monitor.SensorReading{Voltage: nominal.Voltage, Temperature: (t.TempWarning + t.TempCritical) / 2, Current: nominal.Current}, monitor.StatusWarning},
		{"over temperature", monitor.SensorReading{Voltage: nominal.Voltage, Temperature: t.TempCritical + 5, Current: nominal.Current}, monitor.StatusCritical},
		{"negative current", monitor.SensorReading{Voltage: nominal.Voltage, Temperature: nominal.Temperature, Current: -0.1}, monitor.StatusCritical},
		{"high current", monitor.SensorReading{Voltage: nominal.Voltage, Temperature: nominal.Temperature, Current: t.MaxCurrent + 0.5}, monitor.StatusWarning},
	}

	for _, c := range cases {
		if got := t.DetermineStatus(c.r); got != c.want {
			return failf("%s: got %s, want %s", c.what, got, c.want)
		}
	}
	return nil
}

func (r runner) criticalConditions(context.Context) error {
	t := r.th
	s := monitor.NewSystemState(t)

	normal, _ := t.CheckCritical(s)
	missing, _ := t.CheckCritical(nil)
	s.ErrorCount = t.MaxErrors
	limit, _ := t.CheckCritical(s)

	return expect(
		expectation{normal, false, "fresh state critical"},
		expectation{missing, true, "missing state critical"},
		expectation{limit, true, "error limit critical"},
	)
}

func (runner) registerValidation(context.Context) error {
	return expect(
		expectation{monitor.ValidateRegister(0x1000, 0x5000, 0x1000, 0x9000), true, "value in range"},
		expectation{monitor.ValidateRegister(0x1000, 0x1000, 0x1000, 0x9000), true, "value at minimum"},
		expectation{monitor.ValidateRegister(0x1000, 0x9000, 0x1000, 0x9000), true, "value at maximum"},
		expectation{monitor.ValidateRegister(0x1000, 0x0FFF, 0x1000, 0x9000), false, "value below minimum"},
		expectation{monitor.ValidateRegister(0x1000, 0x9001, 0x1000, 0x9000), false, "value above maximum"},
	)
}

func (r runner) registerScan(context.Context) error {
	s := monitor.NewSystemState(r.th)
	valid, err := monitor.ScanRegisters(s, hw.NewSimulator(r.th.Nominal()))
	if err != nil {
		return err
	}
	if valid != len(s.Registers) {
		return failf("%d of %d registers valid after scan", valid, len(s.Registers))
	}
	if n := monitor.CountValidRegisters(s); n != valid {
		return failf("count %d disagrees with scan %d", n, valid)
	}
	return nil
}

func (runner) errorMessages(context.Context) error {
	for k := monitor.ErrorNone; k <= monitor.ErrorInvalidData; k++ {
		if !k.Known() || k.Message() == "" {
			return failf("kind %d has no message", int(k))
		}
	}
	if monitor.ErrorKind(999).Message() != "Unknown error" {
		return failf("unexpected message for unknown kind")
	}
	return nil
}

func (r runner) session() (*recovery.Session, error) {
	return recovery.NewSession(r.th, r.cfg,
		recovery.WithSleeper(recovery.NoopSleeper{}),
		recovery.WithLogger(logger.Nop()),
		recovery.WithChip("selftest"),
	)
}

func (r runner) singleRecovery(ctx context.Context) error {
	sess, err := r.session()
	if err != nil {
		return err
	}

	s := monitor.NewSystemState(r.th)
	r.th.InjectFault(s, monitor.ErrorVoltageLow)

	return expect(
		expectation{sess.AttemptRecovery(ctx, s, monitor.ErrorVoltageLow), true, "voltage low recovery"},
		expectation{r.th.VoltageOK(s.Voltage), true, "voltage back in range"},
		expectation{sess.AttemptRecovery(ctx, s, monitor.ErrorCommunication), true, "communication recovery"},
		expectation{sess.AttemptRecovery(ctx, nil, monitor.ErrorVoltageLow), false, "recovery without state"},
	)
}

func (r runner) comprehensiveRecovery(ctx context.Context) error {
	sess, err := r.session()
	if err != nil {
		return err
	}

	s := monitor.NewSystemState(r.th)
	r.th.InjectFault(s, monitor.ErrorTemperatureHigh)
	r.th.Classify(s)

	ok := sess.ComprehensiveRecover(ctx, s, monitor.ErrorTemperatureHigh)
	return expect(
		expectation{ok, true, "comprehensive temperature recovery"},
		expectation{s.Status.Operational(), true, "operational after recovery"},
		expectation{sess.Log().Len() > 0, true, "recovery logged"},
	)
}

func (r runner) emergencyShutdown(context.Context) error {
	s := monitor.NewSystemState(r.th)
	sim := hw.NewSimulator(r.th.Nominal())

	if err := monitor.EmergencyShutdown(s, sim); err != nil {
		return err
	}
	for _, reg := range s.Registers {
		if v, ok := sim.Written(reg.Address); !ok || v != 0 {
			return failf("register %s not cleared", reg.Name)
		}
	}
	return expect(
		expectation{s.Active, false, "active after shutdown"},
		expectation{s.Status == monitor.StatusCritical, true, "critical after shutdown"},
	)
}

func (r runner) edgeCases(context.Context) error {
	t := r.th
	return expect(
		expectation{t.VoltageOK(0), false, "zero voltage"},
		expectation{t.VoltageOK(-1), false, "negative voltage"},
		expectation{t.VoltageOK(100), false, "extreme voltage"},
		expectation{t.CurrentOK(-1), false, "negative current"},
		expectation{t.CurrentOK(1000), false, "extreme current"},
		expectation{t.TemperatureOK(-100), !t.MinTemperatureEnabled, "extreme cold"},
		expectation{t.TemperatureOK(200), false, "extreme heat"},
		expectation{t.VoltageOK(t.MinVoltage + epsilon), true, "just above minimum voltage"},
		expectation{t.VoltageOK(t.MaxVoltage - epsilon), true, "just below maximum voltage"},
	)
}
