package chip_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/chipmon/internal/chip"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingReader fails reads inside [from, to) and returns a valid value
// elsewhere.
type failingReader struct {
	from, to uint32
}

func (r failingReader) ReadRegister(address uint32) (uint32, error) {
	if address >= r.from && address < r.to {
		return 0, stderrors.New("bus error")
	}
	return monitor.DefaultRegisterSeed, nil
}

func chipRange(id int) failingReader {
	base := monitor.DefaultRegisterBase + uint32(id)*chip.AddressStride
	return failingReader{from: base, to: base + chip.AddressStride}
}

func newSystem(t *testing.T, count int, opts ...chip.Option) *chip.System {
	t.Helper()
	opts = append(opts, chip.WithSessionOptions(recovery.WithLogger(logger.Nop())))
	sys, err := chip.New(count, monitor.DefaultThresholds(), recovery.DefaultConfig(), opts...)
	require.NoError(t, err)
	return sys
}

func TestNewRejectsChipCount(t *testing.T) {
	for _, n := range []int{0, -1, chip.MaxChips + 1} {
		_, err := chip.New(n, monitor.DefaultThresholds(), recovery.DefaultConfig())
		assert.Error(t, err, "count %d", n)
	}
}

func TestNewLaysOutChips(t *testing.T) {
	sys := newSystem(t, 3)
	chips := sys.Chips()
	require.Len(t, chips, 3)

	for i, c := range chips {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, chip.Name(i), c.Name)
		assert.Equal(t, i%3+1, c.Priority)
		assert.Equal(t, c.Name, c.Session.Chip())
		assert.True(t, c.Active())
	}

	c1 := chips[1]
	assert.Equal(t, "CHIP1_REG0", c1.State.Registers[0].Name)
	assert.Equal(t, uint32(0x40001000), c1.State.Registers[0].Address)
	assert.Equal(t, uint32(0x4000100C), c1.State.Registers[3].Address)
	assert.NotEqual(t, chips[0].Session.ID(), c1.Session.ID())
}

func TestNewUsesRegisterMap(t *testing.T) {
	m, err := hw.ParseRegisterMap([]byte(`
chips:
  - name: chip0
    registers:
      - {name: PLL_LOCK, address: 0x50000000, min: 1, max: 1}
`))
	require.NoError(t, err)

	sys := newSystem(t, 2, chip.WithRegisterMap(m))
	c0, ok := sys.Chip(0)
	require.True(t, ok)
	require.Len(t, c0.State.Registers, 1)
	assert.Equal(t, "PLL_LOCK", c0.State.Registers[0].Name)

	c1, _ := sys.Chip(1)
	assert.Len(t, c1.State.Registers, 4, "unlisted chips keep the default layout")
}

func TestDueFollowsPriorityCadence(t *testing.T) {
	sys := newSystem(t, 4)

	ids := func(iteration int) []int {
		var out []int
		for _, c := range sys.Due(iteration) {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []int{0, 3}, ids(1))
	assert.Equal(t, []int{0, 1, 3}, ids(2))
	assert.Equal(t, []int{0, 2, 3}, ids(3))
	assert.Equal(t, []int{0, 1, 2, 3}, ids(6))

	monitor.Cleanup(sys.Chips()[3].State)
	assert.Equal(t, []int{0}, ids(1))
	assert.Equal(t, 3, sys.ActiveCount())
}

func TestScanAbortsOnHighPriorityFailures(t *testing.T) {
	sys := newSystem(t, 3)

	report := sys.Scan(chipRange(0))

	assert.True(t, report.Aborted)
	assert.Equal(t, 0, report.AbortedBy)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 0, report.Valid)
	require.Len(t, report.Chips, 1)
	assert.Equal(t, 3, sys.Chips()[0].State.ErrorCount)
}

func TestScanContinuesPastLowPriorityFailures(t *testing.T) {
	sys := newSystem(t, 3)

	report := sys.Scan(chipRange(1))

	assert.False(t, report.Aborted)
	assert.Equal(t, -1, report.AbortedBy)
	assert.Equal(t, 12, report.Scanned)
	assert.Equal(t, 8, report.Valid)
	require.Len(t, report.Chips, 3)
	assert.Equal(t, 0, report.Chips[1].Valid)
	assert.Equal(t, 4, sys.Chips()[1].State.ErrorCount)
	assert.Equal(t, 0, sys.Chips()[2].State.ErrorCount)
}

func TestScanSkipsInactiveChips(t *testing.T) {
	sys := newSystem(t, 2)
	monitor.Cleanup(sys.Chips()[0].State)

	report := sys.Scan(chipRange(0))

	assert.False(t, report.Aborted)
	assert.True(t, report.Chips[0].Skipped)
	assert.Equal(t, 4, report.Scanned)
}

func TestScanCountsAbnormalStatus(t *testing.T) {
	sys := newSystem(t, 2)
	sys.Chips()[1].State.Temperature = 80

	report := sys.Scan(failingReader{})

	assert.Equal(t, monitor.StatusWarning, report.Chips[1].Status)
	assert.Equal(t, 1, sys.Chips()[1].State.ErrorCount)
	assert.Equal(t, 0, sys.Chips()[0].State.ErrorCount)
}

func TestCorrelate(t *testing.T) {
	sys := newSystem(t, 3)
	chips := sys.Chips()

	findings := sys.Correlate()
	require.Len(t, findings, 3)
	for _, f := range findings {
		assert.False(t, f.Anomalous())
		assert.InDelta(t, 100.0, f.RegisterMatch, 1e-9)
	}

	chips[1].State.Voltage = 3.6
	chips[2].State.Temperature = 40
	sys.Scan(chipRange(2))

	findings = sys.Correlate()
	require.Len(t, findings, 3)

	ab := findings[0]
	assert.Equal(t, [2]int{0, 1}, [2]int{ab.A, ab.B})
	assert.True(t, ab.VoltageSkew)
	assert.False(t, ab.TemperatureSkew)
	assert.False(t, ab.LowRegisterMatch)

	ac := findings[1]
	assert.Equal(t, [2]int{0, 2}, [2]int{ac.A, ac.B})
	assert.True(t, ac.TemperatureSkew)
	assert.True(t, ac.LowRegisterMatch)
	assert.InDelta(t, 0.0, ac.RegisterMatch, 1e-9)

	monitor.Cleanup(chips[2].State)
	assert.Len(t, sys.Correlate(), 1)
}
