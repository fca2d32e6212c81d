package recovery

import (
	"context"
	"time"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// Sleeper blocks between attempts. Implementations must return early with
// ctx.Err() once ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Clock supplies timestamps for log entries.
type Clock interface {
	Now() time.Time
}

// Notifier receives every log entry and degradation transition of a session.
type Notifier interface {
	Notify(ev Event)
}

// Action is a single-shot recovery step for one fault kind.
type Action func(ctx context.Context, s *monitor.SystemState, kind monitor.ErrorKind) bool

type EventType string

const (
	EventLogged      EventType = "logged"
	EventDegradation EventType = "degradation"
)

// Event is the outward view of something the session recorded.
type Event struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	Chip        string            `json:"chip"`
	Type        EventType         `json:"type"`
	Kind        monitor.ErrorKind `json:"error_code"`
	KindName    string            `json:"error_kind"`
	Description string            `json:"description"`
	RetryCount  int               `json:"retry_count"`
	Success     bool              `json:"success"`
	Level       Level             `json:"degradation_level"`
	Timestamp   time.Time         `json:"timestamp"`
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ContextSleeper waits on a timer and wakes early on cancellation.
type ContextSleeper struct{}

func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoopSleeper returns immediately. Used by the self-test and simulations.
type NoopSleeper struct{}

func (NoopSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type noopNotifier struct{}

func (noopNotifier) Notify(Event) {}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (n Notifiers) Notify(ev Event) {
	for _, x := range n {
		x.Notify(ev)
	}
}
