package hw

import (
	"context"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// Backend is a register bus plus the sensors behind it.
type Backend interface {
	monitor.RegisterIO
	SensorSource
	Close() error
}

// SensorSource samples the supply and temperature sensors.
type SensorSource interface {
	ReadSensors(ctx context.Context) (monitor.SensorReading, error)
}

// ModbusClient is the subset of a Modbus client the backend needs.
type ModbusClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Actuator drives the hardware towards a corrected operating point after a
// recovery.
type Actuator interface {
	ApplyReading(ctx context.Context, r monitor.SensorReading) error
}
