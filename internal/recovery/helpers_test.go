package recovery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recovery.Event
}

func (e *eventRecorder) Notify(ev recovery.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventRecorder) ofType(t recovery.EventType) []recovery.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []recovery.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	session *recovery.Session
	sleeper *recordingSleeper
	events  *eventRecorder
	th      monitor.Thresholds
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		sleeper: &recordingSleeper{},
		events:  &eventRecorder{},
		th:      monitor.DefaultThresholds(),
	}

	s, err := recovery.NewSession(f.th, recovery.DefaultConfig(),
		recovery.WithSleeper(f.sleeper),
		recovery.WithClock(&fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}),
		recovery.WithNotifier(f.events),
		recovery.WithLogger(logger.Nop()),
		recovery.WithChip("0"),
	)
	require.NoError(t, err)
	f.session = s

	return f
}

func descriptions(entries []recovery.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Description
	}
	return out
}
