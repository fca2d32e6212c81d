package recovery

import (
	"context"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// policy is the single-shot strategy for one fault kind.
type policy struct {
	name   string
	action Action
}

func (s *Session) basicPolicies() map[monitor.ErrorKind]policy {
	th := s.th

	return map[monitor.ErrorKind]policy{
		monitor.ErrorVoltageLow: {"raise voltage", func(_ context.Context, st *monitor.SystemState, _ monitor.ErrorKind) bool {
			st.Voltage = th.MinVoltage + 0.1
			return st.Voltage >= th.MinVoltage
		}},
		monitor.ErrorVoltageHigh: {"lower voltage", func(_ context.Context, st *monitor.SystemState, _ monitor.ErrorKind) bool {
			st.Voltage = th.MaxVoltage - 0.1
			return st.Voltage <= th.MaxVoltage
		}},
		monitor.ErrorTemperatureHigh: {"engage cooling", func(_ context.Context, st *monitor.SystemState, _ monitor.ErrorKind) bool {
			st.Temperature = th.TempCritical - 5.0
			return st.Temperature <= th.TempCritical
		}},
		monitor.ErrorCurrentLow: {"reconnect load", func(_ context.Context, st *monitor.SystemState, _ monitor.ErrorKind) bool {
			st.Current = th.MinCurrent + 0.05
			return st.Current >= th.MinCurrent
		}},
		monitor.ErrorCurrentHigh: {"shed load", func(_ context.Context, st *monitor.SystemState, _ monitor.ErrorKind) bool {
			st.Current = th.MaxCurrent - 0.1
			return st.Current <= th.MaxCurrent
		}},
		monitor.ErrorCommunication: {"reset interface", s.settle},
		monitor.ErrorTimeout:       {"extend timeout", s.settle},
		monitor.ErrorInvalidData: {"refresh data", func(_ context.Context, st *monitor.SystemState, _ monitor.ErrorKind) bool {
			if s.registers != nil {
				if _, err := monitor.ScanRegisters(st, s.registers); err != nil {
					s.logger.Debug().Err(err).Msg("Register refresh incomplete")
				}
				return true
			}
			monitor.RefreshValidity(st)
			return true
		}},
		monitor.ErrorNone: {"no action", func(context.Context, *monitor.SystemState, monitor.ErrorKind) bool {
			return true
		}},
	}
}

// settle waits for a reset to take effect. Only cancellation fails it.
func (s *Session) settle(ctx context.Context, _ *monitor.SystemState, kind monitor.ErrorKind) bool {
	return s.wait(ctx, s.cfg.ResetDelay, kind, 0) == nil
}

// AttemptRecovery applies the single-shot strategy for kind once. Unknown
// kinds and a nil state fail without side effects.
func (s *Session) AttemptRecovery(ctx context.Context, state *monitor.SystemState, kind monitor.ErrorKind) bool {
	if state == nil {
		s.logger.Error().Str("error_kind", kind.String()).Msg("Cannot attempt recovery without system state")
		return false
	}

	p, ok := s.policies[kind]
	if !ok {
		s.logger.Warn().Int("error_code", int(kind)).Msg("No recovery strategy for error")
		return false
	}

	ok = p.action(ctx, state, kind)
	s.logger.Debug().
		Str("error_kind", kind.String()).
		Str("strategy", p.name).
		Bool("success", ok).
		Msg("Recovery strategy applied")

	return ok
}

// Strategy names the single-shot action used for kind.
func (s *Session) Strategy(kind monitor.ErrorKind) (string, bool) {
	p, ok := s.policies[kind]
	return p.name, ok
}
