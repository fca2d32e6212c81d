package chip

import "math"

const (
	voltageSkewLimit     = 0.2
	temperatureSkewLimit = 10.0
	registerMatchLimit   = 80.0
)

// Finding compares two active chips.
type Finding struct {
	A, B            int
	VoltageDiff     float64
	TemperatureDiff float64
	// RegisterMatch is the percentage of register positions whose validity
	// agrees, relative to chip A's register count.
	RegisterMatch float64

	VoltageSkew      bool
	TemperatureSkew  bool
	LowRegisterMatch bool
}

func (f Finding) Anomalous() bool {
	return f.VoltageSkew || f.TemperatureSkew || f.LowRegisterMatch
}

// Correlate compares every pair of active chips.
func (s *System) Correlate() []Finding {
	var findings []Finding

	for i, a := range s.chips {
		if !a.Active() {
			continue
		}
		for _, b := range s.chips[i+1:] {
			if !b.Active() {
				continue
			}

			f := Finding{
				A:               a.ID,
				B:               b.ID,
				VoltageDiff:     a.State.Voltage - b.State.Voltage,
				TemperatureDiff: a.State.Temperature - b.State.Temperature,
				RegisterMatch:   registerMatch(a, b),
			}
			f.VoltageSkew = math.Abs(f.VoltageDiff) > voltageSkewLimit
			f.TemperatureSkew = math.Abs(f.TemperatureDiff) > temperatureSkewLimit
			f.LowRegisterMatch = f.RegisterMatch < registerMatchLimit
			findings = append(findings, f)
		}
	}

	return findings
}

func registerMatch(a, b *Chip) float64 {
	ra, rb := a.State.Registers, b.State.Registers
	if len(ra) == 0 {
		return 100
	}

	matching := 0
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i].Valid == rb[i].Valid {
			matching++
		}
	}
	return float64(matching) / float64(len(ra)) * 100
}
