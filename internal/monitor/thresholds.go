package monitor

import (
	"codeberg.org/mutker/chipmon/internal/errors"
)

const (
	MaxRegisters    = 16
	MaxErrors       = 10
	MaxRegisterName = 31

	MinVoltage     = 3.0
	MaxVoltage     = 3.6
	NominalVoltage = 3.3

	TempWarning  = 75.0
	TempCritical = 85.0
	TempNormal   = 25.0

	MinCurrent     = 0.05
	MaxCurrent     = 2.0
	NominalCurrent = 0.5
)

// Thresholds holds the limits the status engine classifies against.
type Thresholds struct {
	MinVoltage     float64
	MaxVoltage     float64
	NominalVoltage float64

	TempWarning  float64
	TempCritical float64
	TempNormal   float64

	// Cold-side check is off unless explicitly enabled.
	MinTemperatureEnabled bool
	MinTemperature        float64

	MinCurrent     float64
	MaxCurrent     float64
	NominalCurrent float64

	MaxErrors int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinVoltage:     MinVoltage,
		MaxVoltage:     MaxVoltage,
		NominalVoltage: NominalVoltage,
		TempWarning:    TempWarning,
		TempCritical:   TempCritical,
		TempNormal:     TempNormal,
		MinTemperature: -40.0,
		MinCurrent:     MinCurrent,
		MaxCurrent:     MaxCurrent,
		NominalCurrent: NominalCurrent,
		MaxErrors:      MaxErrors,
	}
}

func (t Thresholds) Validate() error {
	errFactory := errors.New()

	switch {
	case t.MinVoltage >= t.MaxVoltage:
		return errFactory.WithData(ErrInvalidThreshold, "min voltage must be below max voltage")
	case t.TempWarning > t.TempCritical:
		return errFactory.WithData(ErrInvalidThreshold, "warning temperature must not exceed critical")
	case t.MinTemperatureEnabled && t.MinTemperature >= t.TempWarning:
		return errFactory.WithData(ErrInvalidThreshold, "min temperature must be below warning")
	case t.MinCurrent < 0 || t.MinCurrent >= t.MaxCurrent:
		return errFactory.WithData(ErrInvalidThreshold, "current bounds must satisfy 0 <= min < max")
	case t.MaxErrors < 1:
		return errFactory.WithData(ErrInvalidThreshold, "max errors must be positive")
	}

	return nil
}

// Nominal returns the reading a freshly initialised system starts from.
func (t Thresholds) Nominal() SensorReading {
	return SensorReading{
		Voltage:     t.NominalVoltage,
		Temperature: t.TempNormal,
		Current:     t.NominalCurrent,
	}
}
