package hw

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"github.com/goburrow/modbus"
)

const (
	wordsPerRegister = 2
	sensorWords      = 6

	millivoltsPerVolt   = 1000.0
	centiDegreesPerUnit = 100.0
	milliampsPerAmp     = 1000.0
)

type ModbusConfig struct {
	Endpoint      string
	SlaveID       uint8
	Timeout       time.Duration
	RegisterBase  uint32 // bus address mapped onto holding register 0
	SensorAddress uint16 // first of six input registers: mV, c°C, mA as int32 pairs
}

func (c ModbusConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New().WithData(ErrInvalidConfig, "modbus endpoint required")
	}
	if c.Timeout <= 0 {
		return errors.New().WithData(ErrInvalidConfig, "modbus timeout must be positive")
	}
	return nil
}

// ModbusBackend exposes 32-bit registers as pairs of holding registers,
// high word first. Requests are serialised.
type ModbusBackend struct {
	mu      sync.Mutex
	cfg     ModbusConfig
	handler *modbus.TCPClientHandler
	client  ModbusClient
}

func NewModbusBackend(cfg ModbusConfig) (*ModbusBackend, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.SlaveID

	if err := h.Connect(); err != nil {
		return nil, errFactory.Wrap(ErrConnectFailed, err).WithData(cfg.Endpoint)
	}

	return &ModbusBackend{
		cfg:     cfg,
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// NewModbusBackendWithClient wraps an existing client. Close is a no-op.
func NewModbusBackendWithClient(cfg ModbusConfig, client ModbusClient) *ModbusBackend {
	return &ModbusBackend{cfg: cfg, client: client}
}

func (b *ModbusBackend) offset(address uint32) (uint16, error) {
	if address < b.cfg.RegisterBase || (address-b.cfg.RegisterBase)%monitor.RegisterStride != 0 {
		return 0, errors.New().WithData(ErrAddressRange, fmt.Sprintf("0x%08X", address))
	}

	offset := (address - b.cfg.RegisterBase) / monitor.RegisterStride * wordsPerRegister
	if offset > 0xFFFF-wordsPerRegister+1 {
		return 0, errors.New().WithData(ErrAddressRange, fmt.Sprintf("0x%08X", address))
	}

	return uint16(offset), nil
}

func (b *ModbusBackend) ReadRegister(address uint32) (uint32, error) {
	errFactory := errors.New()

	offset, err := b.offset(address)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.client.ReadHoldingRegisters(offset, wordsPerRegister)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}
	if len(raw) < 4 {
		return 0, errFactory.WithData(ErrShortResponse, len(raw))
	}

	return binary.BigEndian.Uint32(raw), nil
}

func (b *ModbusBackend) WriteRegister(address, value uint32) error {
	offset, err := b.offset(address)
	if err != nil {
		return err
	}

	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, value)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.client.WriteMultipleRegisters(offset, wordsPerRegister, payload); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	return nil
}

func (b *ModbusBackend) ReadSensors(ctx context.Context) (monitor.SensorReading, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return monitor.SensorReading{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	raw, err := b.client.ReadInputRegisters(b.cfg.SensorAddress, sensorWords)
	if err != nil {
		return monitor.SensorReading{}, errFactory.Wrap(ErrReadFailed, err)
	}
	if len(raw) < sensorWords*2 {
		return monitor.SensorReading{}, errFactory.WithData(ErrShortResponse, len(raw))
	}

	word := func(i int) float64 {
		return float64(int32(binary.BigEndian.Uint32(raw[i*4:])))
	}

	return monitor.SensorReading{
		Voltage:     word(0) / millivoltsPerVolt,
		Temperature: word(1) / centiDegreesPerUnit,
		Current:     word(2) / milliampsPerAmp,
	}, nil
}

func (b *ModbusBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handler == nil {
		return nil
	}
	return b.handler.Close()
}
