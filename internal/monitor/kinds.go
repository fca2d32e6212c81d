package monitor

// ErrorKind identifies the fault a recovery is run for. Numeric values match
// the codes written to the error log.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorVoltageLow
	ErrorVoltageHigh
	ErrorTemperatureHigh
	ErrorCurrentLow
	ErrorCurrentHigh
	ErrorCommunication
	ErrorTimeout
	ErrorInvalidData
)

type kindInfo struct {
	name    string
	message string
}

var kinds = map[ErrorKind]kindInfo{
	ErrorNone:            {"none", "No error"},
	ErrorVoltageLow:      {"voltage_low", "Voltage below minimum threshold"},
	ErrorVoltageHigh:     {"voltage_high", "Voltage above maximum threshold"},
	ErrorTemperatureHigh: {"temperature_high", "Temperature exceeds critical threshold"},
	ErrorCurrentLow:      {"current_low", "Current consumption too low"},
	ErrorCurrentHigh:     {"current_high", "Current consumption too high"},
	ErrorCommunication:   {"communication", "Communication interface failure"},
	ErrorTimeout:         {"timeout", "Operation timeout"},
	ErrorInvalidData:     {"invalid_data", "Invalid or corrupted data"},
}

// Message returns the human-readable description of the kind.
func (k ErrorKind) Message() string {
	if info, ok := kinds[k]; ok {
		return info.message
	}
	return "Unknown error"
}

func (k ErrorKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Known reports whether k is one of the defined kinds.
func (k ErrorKind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// ErrorKindForStatus picks the recovery kind for a classified reading.
func (t Thresholds) ErrorKindForStatus(status Status, r SensorReading) ErrorKind {
	switch status {
	case StatusCritical:
		if r.Temperature > t.TempCritical {
			return ErrorTemperatureHigh
		}
		if r.Current < 0 {
			return ErrorCurrentLow
		}
		return ErrorTemperatureHigh
	case StatusVoltageError:
		if r.Voltage > t.MaxVoltage {
			return ErrorVoltageHigh
		}
		return ErrorVoltageLow
	case StatusCommunicationError:
		return ErrorCommunication
	case StatusWarning, StatusCurrentError:
		if r.Current > t.MaxCurrent {
			return ErrorCurrentHigh
		}
		if r.Current < t.MinCurrent {
			return ErrorCurrentLow
		}
		if r.Temperature > t.TempWarning {
			return ErrorTemperatureHigh
		}
		return ErrorNone
	case StatusTemperatureError:
		return ErrorTemperatureHigh
	default:
		return ErrorNone
	}
}

// ParseErrorKind maps a kind name such as "temperature_high" back to its
// ErrorKind.
func ParseErrorKind(name string) (ErrorKind, bool) {
	for k, info := range kinds {
		if info.name == name {
			return k, true
		}
	}
	return ErrorNone, false
}
