package hw

import (
	"context"
	"sync"

	"codeberg.org/mutker/chipmon/internal/monitor"
)

// Simulator stands in for real hardware. Register reads cycle through
// sixteen values derived from a running counter; writes always succeed.
type Simulator struct {
	mu      sync.Mutex
	counter uint32
	written map[uint32]uint32
	reading monitor.SensorReading
	readErr error
}

func NewSimulator(reading monitor.SensorReading) *Simulator {
	return &Simulator{
		written: make(map[uint32]uint32),
		reading: reading,
	}
}

func (s *Simulator) ReadRegister(_ uint32) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return 0, s.readErr
	}

	value := monitor.DefaultRegisterSeed + ((s.counter % 16) << 4)
	s.counter++
	return value, nil
}

func (s *Simulator) WriteRegister(address, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written[address] = value
	return nil
}

// Written returns the last value written to address.
func (s *Simulator) Written(address uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.written[address]
	return v, ok
}

func (s *Simulator) ReadSensors(ctx context.Context) (monitor.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return monitor.SensorReading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading, nil
}

// SetReading replaces what the sensors report from now on.
func (s *Simulator) SetReading(r monitor.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = r
}

// FailReads makes register reads return err until called with nil.
func (s *Simulator) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (*Simulator) Close() error { return nil }

func (s *Simulator) ApplyReading(ctx context.Context, r monitor.SensorReading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.SetReading(r)
	return nil
}
