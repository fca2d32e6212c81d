package recovery_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLogEvictsOldestWhenFull(t *testing.T) {
	log := recovery.NewErrorLog(100, &fixedClock{now: time.Unix(0, 0)})

	for i := 0; i <= 100; i++ {
		log.Append(monitor.ErrorTimeout, fmt.Sprintf("entry %d", i), i, i%2 == 0)
	}

	entries := log.Entries()
	require.Len(t, entries, 100)
	assert.Equal(t, "entry 1", entries[0].Description)
	assert.Equal(t, "entry 100", entries[99].Description)
	assert.NotContains(t, descriptions(entries), "entry 0")
	assert.Equal(t, 101, log.TotalErrors())
	assert.Equal(t, 51, log.SuccessfulRecoveries())
	assert.True(t, entries[0].Timestamp.Before(entries[99].Timestamp))
}

func TestErrorLogLast(t *testing.T) {
	log := recovery.NewErrorLog(5, nil)

	assert.Empty(t, log.Last(10))
	for i := 0; i < 4; i++ {
		log.Append(monitor.ErrorNone, fmt.Sprintf("e%d", i), 0, true)
	}

	assert.Equal(t, []string{"e2", "e3"}, descriptions(log.Last(2)))
	assert.Equal(t, []string{"e0", "e1", "e2", "e3"}, descriptions(log.Last(10)))
	assert.Empty(t, log.Last(0))
}

func TestErrorLogSuccessRate(t *testing.T) {
	log := recovery.NewErrorLog(10, nil)
	assert.Zero(t, log.SuccessRate())

	log.Append(monitor.ErrorVoltageLow, "a", 1, true)
	log.Append(monitor.ErrorVoltageLow, "b", 1, false)
	log.Append(monitor.ErrorVoltageLow, "c", 1, true)
	log.Append(monitor.ErrorVoltageLow, "d", 1, true)

	assert.InDelta(t, 0.75, log.SuccessRate(), 1e-9)
}

func TestErrorLogTruncatesDescription(t *testing.T) {
	log := recovery.NewErrorLog(1, nil)

	entry := log.Append(monitor.ErrorNone, strings.Repeat("x", 200), 0, true)
	assert.Len(t, entry.Description, recovery.MaxDescriptionBytes)

	entry = log.Append(monitor.ErrorNone, strings.Repeat("x", 126)+"é", 0, true)
	assert.Equal(t, strings.Repeat("x", 126), entry.Description)
	assert.Equal(t, 1, log.Len())
}
