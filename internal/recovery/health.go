package recovery

import (
	"codeberg.org/mutker/chipmon/internal/monitor"
)

const (
	errorPenalty           = 10
	voltageOutPenalty      = 30
	voltageMarginPenalty   = 15
	temperatureCritPenalty = 40
	temperatureWarnPenalty = 20
	currentPenalty         = 25

	// Margin next to each voltage bound, as a fraction of the bound itself.
	voltageMarginFraction = 0.1
)

// HealthBreakdown itemises the penalties behind a health score.
type HealthBreakdown struct {
	Score              int
	ErrorPenalty       int
	VoltagePenalty     int
	TemperaturePenalty int
	CurrentPenalty     int
}

// HealthScore rates a state from 0 (failed) to 100 (nominal). A nil state
// scores 0.
func HealthScore(t monitor.Thresholds, s *monitor.SystemState) int {
	return AssessHealth(t, s).Score
}

func AssessHealth(t monitor.Thresholds, s *monitor.SystemState) HealthBreakdown {
	if s == nil {
		return HealthBreakdown{}
	}

	b := HealthBreakdown{ErrorPenalty: errorPenalty * s.ErrorCount}

	switch {
	case !t.VoltageOK(s.Voltage):
		b.VoltagePenalty = voltageOutPenalty
	case s.Voltage < t.MinVoltage*(1+voltageMarginFraction) ||
		s.Voltage > t.MaxVoltage*(1-voltageMarginFraction):
		b.VoltagePenalty = voltageMarginPenalty
	}

	switch {
	case s.Temperature > t.TempCritical:
		b.TemperaturePenalty = temperatureCritPenalty
	case s.Temperature > t.TempWarning:
		b.TemperaturePenalty = temperatureWarnPenalty
	}

	if s.Current < t.MinCurrent || s.Current > t.MaxCurrent {
		b.CurrentPenalty = currentPenalty
	}

	b.Score = clamp(100-b.ErrorPenalty-b.VoltagePenalty-b.TemperaturePenalty-b.CurrentPenalty, 0, 100)
	return b
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}
