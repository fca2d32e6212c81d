package monitor

import (
	"fmt"

	"codeberg.org/mutker/chipmon/internal/errors"
)

const (
	DefaultRegisterBase  uint32 = 0x40000000
	DefaultRegisterSeed  uint32 = 0x12345678
	DefaultRegisterMin   uint32 = 0x10000000
	DefaultRegisterMax   uint32 = 0x20000000
	RegisterStride       uint32 = 4
	defaultRegisterCount        = 4
)

var defaultRegisterNames = [defaultRegisterCount]string{"CTRL_REG", "STATUS_REG", "DATA_REG", "CONFIG_REG"}

// NewSystemState returns an active state at nominal readings with the four
// default control registers.
func NewSystemState(t Thresholds) *SystemState {
	s := &SystemState{
		SensorReading: t.Nominal(),
		Status:        StatusNormal,
		Active:        true,
		Registers:     make([]RegisterSnapshot, 0, MaxRegisters),
	}

	for i, name := range defaultRegisterNames {
		reg := NewRegister(name, DefaultRegisterBase+uint32(i)*RegisterStride, DefaultRegisterMin, DefaultRegisterMax)
		reg.Update(DefaultRegisterSeed + uint32(i))
		s.Registers = append(s.Registers, reg)
	}

	return s
}

// NewRegister builds a snapshot with a zero value. Names are cut to
// MaxRegisterName bytes.
func NewRegister(name string, address, minValue, maxValue uint32) RegisterSnapshot {
	if len(name) > MaxRegisterName {
		name = name[:MaxRegisterName]
	}
	reg := RegisterSnapshot{
		Name:        name,
		Address:     address,
		ExpectedMin: minValue,
		ExpectedMax: maxValue,
	}
	reg.Valid = ValidateRegister(address, 0, minValue, maxValue)
	return reg
}

// AddRegister appends a register to the state.
func AddRegister(s *SystemState, reg RegisterSnapshot) error {
	errFactory := errors.New()

	if s == nil {
		return errFactory.New(ErrNilState)
	}
	if len(s.Registers) >= MaxRegisters {
		return errFactory.WithData(ErrRegisterLimit, fmt.Sprintf("limit %d", MaxRegisters))
	}

	reg.Valid = ValidateRegister(reg.Address, reg.Value, reg.ExpectedMin, reg.ExpectedMax)
	s.Registers = append(s.Registers, reg)
	return nil
}

// ScanRegisters reads every register, refreshes value and validity and
// returns how many are valid. Unreadable registers are marked invalid and
// reported together in the returned error.
func ScanRegisters(s *SystemState, r RegisterReader) (int, error) {
	errFactory := errors.New()

	if s == nil {
		return 0, errFactory.New(ErrNilState)
	}

	var failed []string
	var firstErr error
	for i := range s.Registers {
		reg := &s.Registers[i]
		value, err := r.ReadRegister(reg.Address)
		if err != nil {
			reg.Valid = false
			failed = append(failed, reg.Name)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reg.Update(value)
	}

	valid := CountValidRegisters(s)
	if len(failed) > 0 {
		return valid, errFactory.Wrap(ErrRegisterRead, firstErr).WithData(failed)
	}

	return valid, nil
}

// RefreshValidity recomputes validity from cached values without touching
// the hardware.
func RefreshValidity(s *SystemState) int {
	if s == nil {
		return 0
	}
	for i := range s.Registers {
		s.Registers[i].Update(s.Registers[i].Value)
	}
	return CountValidRegisters(s)
}

func CountValidRegisters(s *SystemState) int {
	if s == nil {
		return 0
	}
	count := 0
	for _, reg := range s.Registers {
		if reg.Valid {
			count++
		}
	}
	return count
}

// Cleanup deactivates the state.
func Cleanup(s *SystemState) {
	if s != nil {
		s.Active = false
	}
}

// EmergencyShutdown deactivates the state, marks it critical and writes zero
// to every register. Write failures do not stop the sequence.
func EmergencyShutdown(s *SystemState, w RegisterWriter) error {
	errFactory := errors.New()

	if s == nil {
		return errFactory.New(ErrNilState)
	}

	s.Active = false
	s.Status = StatusCritical

	var failed []string
	var firstErr error
	for i := range s.Registers {
		reg := &s.Registers[i]
		if w != nil {
			if err := w.WriteRegister(reg.Address, 0); err != nil {
				failed = append(failed, reg.Name)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		reg.Update(0)
	}

	if len(failed) > 0 {
		return errFactory.Wrap(ErrRegisterWrite, firstErr).WithData(failed)
	}
	return nil
}

// InjectFault drives the reading just past the limit matching kind and
// counts an error. Kinds without a sensor fault are rejected.
func (t Thresholds) InjectFault(s *SystemState, kind ErrorKind) bool {
	if s == nil {
		return false
	}

	switch kind {
	case ErrorVoltageLow:
		s.Voltage = t.MinVoltage - 0.1
	case ErrorVoltageHigh:
		s.Voltage = t.MaxVoltage + 0.1
	case ErrorTemperatureHigh:
		s.Temperature = t.TempCritical + 5.0
	case ErrorCurrentLow:
		s.Current = t.MinCurrent - 0.01
	case ErrorCurrentHigh:
		s.Current = t.MaxCurrent + 0.1
	default:
		return false
	}

	s.ErrorCount++
	return true
}
