package hw_test

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorRegisterSequence(t *testing.T) {
	sim := hw.NewSimulator(monitor.DefaultThresholds().Nominal())

	for i := uint32(0); i < 20; i++ {
		v, err := sim.ReadRegister(0x40000000)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x12345678)+((i%16)<<4), v)
	}
}

func TestSimulatorScanIsValid(t *testing.T) {
	th := monitor.DefaultThresholds()
	sim := hw.NewSimulator(th.Nominal())
	s := monitor.NewSystemState(th)

	valid, err := monitor.ScanRegisters(s, sim)
	require.NoError(t, err)
	assert.Equal(t, 4, valid)
}

func TestSimulatorWritesAndSensors(t *testing.T) {
	th := monitor.DefaultThresholds()
	sim := hw.NewSimulator(th.Nominal())

	require.NoError(t, sim.WriteRegister(0x40000004, 0))
	v, ok := sim.Written(0x40000004)
	assert.True(t, ok)
	assert.Zero(t, v)

	r, err := sim.ReadSensors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, th.Nominal(), r)

	hot := monitor.SensorReading{Voltage: 3.3, Temperature: 95, Current: 0.5}
	require.NoError(t, sim.ApplyReading(context.Background(), hot))
	r, err = sim.ReadSensors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hot, r)

	sim.FailReads(stderrors.New("bus stuck"))
	_, err = sim.ReadRegister(0x40000000)
	assert.Error(t, err)
}

type fakeModbus struct {
	holding map[uint16]uint16
	input   []byte
	readErr error
}

func (f *fakeModbus) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]byte, 0, quantity*2)
	for i := uint16(0); i < quantity; i++ {
		out = binary.BigEndian.AppendUint16(out, f.holding[address+i])
	}
	return out, nil
}

func (f *fakeModbus) ReadInputRegisters(_, _ uint16) ([]byte, error) {
	return f.input, nil
}

func (f *fakeModbus) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	for i := uint16(0); i < quantity; i++ {
		f.holding[address+i] = binary.BigEndian.Uint16(value[i*2:])
	}
	return []byte{}, nil
}

func TestModbusRegisterRoundTrip(t *testing.T) {
	fake := &fakeModbus{holding: map[uint16]uint16{}}
	b := hw.NewModbusBackendWithClient(hw.ModbusConfig{RegisterBase: 0x40000000}, fake)

	require.NoError(t, b.WriteRegister(0x40000008, 0x12345678))
	assert.Equal(t, uint16(0x1234), fake.holding[4])
	assert.Equal(t, uint16(0x5678), fake.holding[5])

	v, err := b.ReadRegister(0x40000008)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)
	require.NoError(t, b.Close())
}

func TestModbusAddressValidation(t *testing.T) {
	b := hw.NewModbusBackendWithClient(hw.ModbusConfig{RegisterBase: 0x40000000}, &fakeModbus{holding: map[uint16]uint16{}})

	_, err := b.ReadRegister(0x3FFFFFFC)
	assert.True(t, errors.HasCode(err, hw.ErrAddressRange))

	_, err = b.ReadRegister(0x40000002)
	assert.True(t, errors.HasCode(err, hw.ErrAddressRange))
}

func TestModbusReadFailure(t *testing.T) {
	b := hw.NewModbusBackendWithClient(hw.ModbusConfig{RegisterBase: 0x40000000},
		&fakeModbus{readErr: stderrors.New("timeout")})

	_, err := b.ReadRegister(0x40000000)
	assert.True(t, errors.HasCode(err, hw.ErrReadFailed))
}

func TestModbusSensors(t *testing.T) {
	input := make([]byte, 0, 12)
	input = binary.BigEndian.AppendUint32(input, 3300)
	temp := int32(-1250)
	input = binary.BigEndian.AppendUint32(input, uint32(temp))
	input = binary.BigEndian.AppendUint32(input, 500)

	b := hw.NewModbusBackendWithClient(hw.ModbusConfig{}, &fakeModbus{input: input})

	r, err := b.ReadSensors(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.3, r.Voltage, 1e-9)
	assert.InDelta(t, -12.5, r.Temperature, 1e-9)
	assert.InDelta(t, 0.5, r.Current, 1e-9)

	short := hw.NewModbusBackendWithClient(hw.ModbusConfig{}, &fakeModbus{input: input[:4]})
	_, err = short.ReadSensors(context.Background())
	assert.True(t, errors.HasCode(err, hw.ErrShortResponse))
}

func TestModbusConfigValidate(t *testing.T) {
	assert.Error(t, hw.ModbusConfig{}.Validate())
	_, err := hw.Open(hw.Config{Backend: hw.BackendModbus})
	assert.Error(t, err)
	_, err = hw.Open(hw.Config{Backend: "jtag"})
	assert.True(t, errors.HasCode(err, hw.ErrUnknownBackend))

	b, err := hw.Open(hw.Config{})
	require.NoError(t, err)
	assert.IsType(t, &hw.Simulator{}, b)
}

const registerMapYAML = `
chips:
  - name: chip0
    registers:
      - name: CTRL_REG
        address: 0x40000000
        min: 0x10000000
        max: 0x20000000
      - name: STATUS_REG
        address: 0x40000004
        min: 0
        max: 0xFFFF
  - name: chip1
    registers: []
`

func TestLoadRegisterMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registerMapYAML), 0o600))

	m, err := hw.LoadRegisterMap(path)
	require.NoError(t, err)
	require.Len(t, m.Chips, 2)

	regs, ok := m.Snapshots("chip0")
	require.True(t, ok)
	require.Len(t, regs, 2)
	assert.Equal(t, "STATUS_REG", regs[1].Name)
	assert.Equal(t, uint32(0x40000004), regs[1].Address)
	assert.Equal(t, uint32(0xFFFF), regs[1].ExpectedMax)

	_, ok = m.Snapshots("chip9")
	assert.False(t, ok)
}

func TestParseRegisterMapRejectsInvertedRange(t *testing.T) {
	_, err := hw.ParseRegisterMap([]byte(`
chips:
  - name: chip0
    registers:
      - {name: BAD, address: 0x40000000, min: 10, max: 5}
`))
	assert.True(t, errors.HasCode(err, hw.ErrRegisterMap))

	_, err = hw.ParseRegisterMap([]byte("chips: [{name: a}, {name: a}]"))
	assert.True(t, errors.HasCode(err, hw.ErrRegisterMap))

	_, err = hw.LoadRegisterMap(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.HasCode(err, hw.ErrReadRegisterMap))
}
