package monitor

// RegisterReader reads a 32-bit register from the monitored hardware.
type RegisterReader interface {
	ReadRegister(address uint32) (uint32, error)
}

// RegisterWriter writes a 32-bit register on the monitored hardware.
type RegisterWriter interface {
	WriteRegister(address, value uint32) error
}

// RegisterIO is the full register collaborator.
type RegisterIO interface {
	RegisterReader
	RegisterWriter
}

// SensorReading is one sample of the supply rails and die temperature.
type SensorReading struct {
	Voltage     float64 // V
	Temperature float64 // °C
	Current     float64 // A
}

// RegisterSnapshot is the cached value and validity of one register.
type RegisterSnapshot struct {
	Name        string
	Address     uint32
	Value       uint32
	ExpectedMin uint32
	ExpectedMax uint32
	Valid       bool
}

// Update stores a freshly read value and recomputes validity.
func (r *RegisterSnapshot) Update(value uint32) {
	r.Value = value
	r.Valid = ValidateRegister(r.Address, value, r.ExpectedMin, r.ExpectedMax)
}

// SystemState is the aggregate a monitoring session works on. Active=false is
// terminal; nothing in this module sets it back to true.
type SystemState struct {
	SensorReading
	Status     Status
	ErrorCount int
	Active     bool
	Registers  []RegisterSnapshot
}

// Reading returns a copy of the current sensor values.
func (s *SystemState) Reading() SensorReading {
	return s.SensorReading
}

// Status is the classification derived from a reading. Values match the
// numbering used on the wire and in persisted snapshots.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusCritical
	StatusVoltageError
	StatusTemperatureError
	StatusCurrentError
	StatusCommunicationError
)

var statusNames = map[Status]string{
	StatusNormal:             "normal",
	StatusWarning:            "warning",
	StatusCritical:           "critical",
	StatusVoltageError:       "voltage_error",
	StatusTemperatureError:   "temperature_error",
	StatusCurrentError:       "current_error",
	StatusCommunicationError: "communication_error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Severity orders statuses for aggregation: Critical > VoltageError >
// CommunicationError > Warning > Normal. Statuses the engine never derives
// rank with their nearest derived neighbour.
func (s Status) Severity() int {
	switch s {
	case StatusCritical:
		return 5
	case StatusVoltageError:
		return 4
	case StatusCommunicationError:
		return 3
	case StatusTemperatureError, StatusCurrentError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Operational reports whether the status needs no recovery.
func (s Status) Operational() bool {
	return s == StatusNormal || s == StatusWarning
}

// CriticalReason names one independently triggered critical condition.
type CriticalReason string

const (
	ReasonNoState         CriticalReason = "no_state"
	ReasonStatusCritical  CriticalReason = "status_critical"
	ReasonErrorLimit      CriticalReason = "error_limit"
	ReasonInactive        CriticalReason = "inactive"
	ReasonTemperature     CriticalReason = "temperature_critical"
	ReasonVoltage         CriticalReason = "voltage_out_of_range"
	ReasonNegativeCurrent CriticalReason = "negative_current"
)
