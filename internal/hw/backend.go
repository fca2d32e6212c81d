package hw

import (
	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/monitor"
)

const (
	BackendSimulator = "simulator"
	BackendModbus    = "modbus"
)

type Config struct {
	Backend string
	Modbus  ModbusConfig
	Nominal monitor.SensorReading
}

// Open returns the configured backend.
func Open(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendSimulator, "":
		return NewSimulator(cfg.Nominal), nil
	case BackendModbus:
		return NewModbusBackend(cfg.Modbus)
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, cfg.Backend)
	}
}
