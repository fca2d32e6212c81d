package monitor

// ValidateRegister reports whether value lies in [min, max]. The address is
// only carried for diagnostics. An inverted range accepts nothing.
func ValidateRegister(_ uint32, value, minValue, maxValue uint32) bool {
	if minValue > maxValue {
		return false
	}
	return value >= minValue && value <= maxValue
}

func (t Thresholds) VoltageOK(v float64) bool {
	return v >= t.MinVoltage && v <= t.MaxVoltage
}

// TemperatureOK only enforces the critical ceiling unless the cold-side
// bound has been enabled.
func (t Thresholds) TemperatureOK(temp float64) bool {
	if t.MinTemperatureEnabled && temp < t.MinTemperature {
		return false
	}
	return temp <= t.TempCritical
}

func (t Thresholds) CurrentOK(c float64) bool {
	return c >= 0 && c >= t.MinCurrent && c <= t.MaxCurrent
}

// DetermineStatus classifies a reading. Rules are evaluated in order and the
// first match wins:
//
//  1. temperature above critical  -> Critical
//  2. voltage out of range        -> VoltageError
//  3. negative current            -> Critical
//  4. current out of range        -> Warning
//  5. temperature above warning   -> Warning
//  6. temperature below cold bound (when enabled) -> Warning
//  7. otherwise                   -> Normal
func (t Thresholds) DetermineStatus(r SensorReading) Status {
	switch {
	case r.Temperature > t.TempCritical:
		return StatusCritical
	case !t.VoltageOK(r.Voltage):
		return StatusVoltageError
	case r.Current < 0:
		return StatusCritical
	case r.Current < t.MinCurrent || r.Current > t.MaxCurrent:
		return StatusWarning
	case r.Temperature > t.TempWarning:
		return StatusWarning
	case t.MinTemperatureEnabled && r.Temperature < t.MinTemperature:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// CheckCritical reports whether any critical condition holds, together with
// every condition that triggered. A nil state is critical.
func (t Thresholds) CheckCritical(s *SystemState) (bool, []CriticalReason) {
	if s == nil {
		return true, []CriticalReason{ReasonNoState}
	}

	var reasons []CriticalReason
	if s.Status == StatusCritical {
		reasons = append(reasons, ReasonStatusCritical)
	}
	if s.ErrorCount >= t.MaxErrors {
		reasons = append(reasons, ReasonErrorLimit)
	}
	if !s.Active {
		reasons = append(reasons, ReasonInactive)
	}
	if s.Temperature > t.TempCritical {
		reasons = append(reasons, ReasonTemperature)
	}
	if !t.VoltageOK(s.Voltage) {
		reasons = append(reasons, ReasonVoltage)
	}
	if s.Current < 0 {
		reasons = append(reasons, ReasonNegativeCurrent)
	}

	return len(reasons) > 0, reasons
}

// Classify recomputes s.Status from its current reading.
func (t Thresholds) Classify(s *SystemState) Status {
	if s == nil {
		return StatusCritical
	}
	s.Status = t.DetermineStatus(s.SensorReading)
	return s.Status
}
