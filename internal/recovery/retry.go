package recovery

import (
	"context"
	"fmt"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// RetryWithBackoff checks the state up to maxRetries+1 times. A check succeeds
// when the state is neither Critical nor VoltageError. Each failing check
// except the last waits Base*2^attempt (capped), runs action and logs the
// outcome; the loop goes on regardless of the action's result. Exhaustion
// logs a Timeout entry.
// Cancelling ctx while waiting ends the loop as exhausted.
func (s *Session) RetryWithBackoff(ctx context.Context, state *monitor.SystemState, maxRetries int, action Action) bool {
	if state == nil || action == nil || maxRetries < 0 {
		s.logger.Error().
			Bool("nil_state", state == nil).
			Int("max_retries", maxRetries).
			Msg("Cannot run retry mechanism")
		return false
	}

	backoff := s.cfg.backoff()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		status := s.th.Classify(state)
		if status != monitor.StatusCritical && status != monitor.StatusVoltageError {
			if attempt > 0 {
				s.record(monitor.ErrorNone, "Operation successful after retries", attempt, true)
			}
			return true
		}

		if attempt == maxRetries {
			break
		}

		kind := monitor.ErrorVoltageLow
		if status == monitor.StatusCritical {
			kind = monitor.ErrorTemperatureHigh
		}

		if err := s.wait(ctx, backoff.Exponential(attempt), kind, attempt); err != nil {
			s.record(monitor.ErrorTimeout, fmt.Sprintf("Retry mechanism aborted: %v", err), attempt, false)
			return false
		}

		ok := action(ctx, state, kind)
		s.record(kind, "Retry mechanism recovery attempt", attempt+1, ok)
	}

	s.record(monitor.ErrorTimeout, "Maximum retry attempts exceeded", maxRetries, false)
	return false
}
