package recovery

import (
	"context"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// ComprehensiveRecover runs the three recovery phases for kind:
//
//  1. immediate mitigation, applied once
//  2. up to MaxAttempts single-shot recoveries with linear backoff, stopping
//     once the state is Normal or Warning
//  3. if phase 2 failed, a degradation evaluation; the system counts as
//     recovered unless the level reached LevelCritical
//
// Exactly one summary entry is logged per call, carrying the number of phase
// 2 attempts made. A false result means the caller must shut down.
func (s *Session) ComprehensiveRecover(ctx context.Context, state *monitor.SystemState, kind monitor.ErrorKind) bool {
	if state == nil {
		s.logger.Error().Str("error_kind", kind.String()).Msg("Cannot perform recovery without system state")
		return false
	}

	s.logger.Info().
		Str("error_kind", kind.String()).
		Str("error", kind.Message()).
		Msg("Starting comprehensive recovery")

	s.mitigate(ctx, state, kind)

	recovered := false
	attempts := 0
	backoff := s.cfg.backoff()

	for n := 1; n <= s.cfg.MaxAttempts; n++ {
		attempts = n
		if s.AttemptRecovery(ctx, state, kind) && s.th.Classify(state).Operational() {
			recovered = true
			s.logger.Info().Int("attempts", n).Msg("Recovery successful")
			break
		}

		if n < s.cfg.MaxAttempts {
			if err := s.wait(ctx, backoff.Linear(n), kind, n); err != nil {
				s.logger.Warn().Err(err).Int("attempts", n).Msg("Recovery retries interrupted")
				break
			}
		}
	}

	if !recovered {
		tr := s.UpdateDegradation(state)
		if tr.To < LevelCritical {
			recovered = true
			s.logger.Warn().Str("level", tr.To.String()).Msg("System operational in degraded mode")
		} else {
			s.logger.Error().Msg("System requires shutdown")
		}
	}

	s.th.Classify(state)
	s.record(kind, "Comprehensive recovery for "+kind.Message(), attempts, recovered)

	return recovered
}

// mitigate applies the immediate corrective step for kind.
func (s *Session) mitigate(ctx context.Context, state *monitor.SystemState, kind monitor.ErrorKind) {
	switch kind {
	case monitor.ErrorTemperatureHigh:
		state.Temperature -= 10.0
	case monitor.ErrorVoltageLow:
		state.Voltage = s.th.MinVoltage + 0.1
	case monitor.ErrorVoltageHigh:
		state.Voltage = s.th.MaxVoltage - 0.1
	case monitor.ErrorCurrentHigh:
		state.Current = s.th.MaxCurrent - 0.1
	case monitor.ErrorCommunication:
		_ = s.wait(ctx, s.cfg.ResetDelay, kind, 0)
	default:
		return
	}

	s.logger.Debug().
		Str("error_kind", kind.String()).
		Float64("voltage", state.Voltage).
		Float64("temperature", state.Temperature).
		Float64("current", state.Current).
		Msg("Immediate mitigation applied")
}
