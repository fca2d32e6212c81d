package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/chipmon/internal/config"
	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the host's config files and environment out of a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHIPMON_CONFIG", "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chipmon.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load(nil, config.WithoutDotEnv())
	require.NoError(t, err)

	assert.Equal(t, config.ModeRun, cfg.Mode)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, 1, cfg.Monitor.Chips)
	assert.Equal(t, time.Second, cfg.Monitor.Interval)
	assert.Equal(t, hw.BackendSimulator, cfg.Hardware.Backend)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, monitor.DefaultThresholds(), cfg.ThresholdsConfig())
	assert.Equal(t, logger.WarnLevel, cfg.Level())
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
log_level = "info"

[thresholds]
temp_warning = 70.0
temp_critical = 80.0
min_temperature_enabled = true
min_temperature = -20.0

[recovery]
max_attempts = 5
base_delay = "250ms"

[monitor]
interval = "2s"
chips = 4

[telemetry]
enabled = true
listen = "127.0.0.1:9100"

[mqtt]
enabled = true
broker = "tcp://broker:1883"
topic_prefix = "lab"
`)
	t.Setenv("CHIPMON_CONFIG", path)

	cfg, err := config.Load(nil, config.WithoutDotEnv())
	require.NoError(t, err)

	th := cfg.ThresholdsConfig()
	assert.InDelta(t, 70.0, th.TempWarning, 1e-9)
	assert.InDelta(t, 80.0, th.TempCritical, 1e-9)
	assert.True(t, th.MinTemperatureEnabled)
	assert.InDelta(t, -20.0, th.MinTemperature, 1e-9)
	// Unset keys keep their defaults
	assert.InDelta(t, monitor.MinVoltage, th.MinVoltage, 1e-9)

	rc := cfg.RecoveryConfig()
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, rc.BaseDelay)

	assert.Equal(t, 2*time.Second, cfg.SupervisorConfig().Interval)
	assert.Equal(t, 4, cfg.Monitor.Chips)
	assert.Equal(t, "127.0.0.1:9100", cfg.TelemetryConfig().Listen)

	ec := cfg.EventsConfig()
	assert.True(t, ec.Enabled)
	assert.Equal(t, "tcp://broker:1883", ec.Broker)
	assert.Equal(t, "lab", ec.TopicPrefix)

	assert.Equal(t, logger.InfoLevel, cfg.Level())
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
[monitor]
chips = 2
interval = "3s"
`)

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("CHIPMON_MONITOR_CHIPS", "3")

		cfg, err := config.Load(nil, config.WithConfigFile(path), config.WithoutDotEnv())
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Monitor.Chips)
		assert.Equal(t, 3*time.Second, cfg.Monitor.Interval)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("CHIPMON_MONITOR_CHIPS", "3")

		cfg, err := config.Load([]string{"--chips", "5", "--debug"},
			config.WithConfigFile(path), config.WithoutDotEnv())
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Monitor.Chips)
		assert.True(t, cfg.Debug)
		assert.Equal(t, logger.DebugLevel, cfg.Level())
	})

	t.Run("config flag overrides option", func(t *testing.T) {
		other := writeConfig(t, "[monitor]\nchips = 6\n")

		cfg, err := config.Load([]string{"--config", other},
			config.WithConfigFile(path), config.WithoutDotEnv())
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Monitor.Chips)
	})

	t.Run("custom prefix", func(t *testing.T) {
		t.Setenv("LAB_MONITOR_CHIPS", "7")

		cfg, err := config.Load(nil, config.WithConfigFile(path),
			config.WithEnvPrefix("LAB"), config.WithoutDotEnv())
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Monitor.Chips)
	})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
		code errors.ErrorCode
	}{
		{
			name: "unknown flag",
			args: []string{"--no-such-flag"},
			code: config.ErrParseFlags,
		},
		{
			name: "invalid mode",
			args: []string{"--mode", "daemon"},
			code: config.ErrInvalidMode,
		},
		{
			name: "too many chips",
			args: []string{"--chips", "9"},
			code: config.ErrInvalidConfig,
		},
		{
			name: "invalid log level",
			file: `log_level = "loud"`,
			code: config.ErrInvalidLogLevel,
		},
		{
			name: "unknown fault",
			args: []string{"--mode", "simulate", "--fault", "meltdown"},
			code: config.ErrInvalidFault,
		},
		{
			name: "inverted voltage window",
			file: "[thresholds]\nmin_voltage = 4.0\nmax_voltage = 3.0\n",
			code: monitor.ErrInvalidThreshold,
		},
		{
			name: "modbus without endpoint",
			args: []string{"--backend", "modbus"},
			code: config.ErrInvalidConfig,
		},
		{
			name: "malformed file",
			file: "[monitor\nchips = ",
			code: config.ErrReadConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			opts := []config.Option{config.WithoutDotEnv()}
			if tt.file != "" {
				opts = append(opts, config.WithConfigFile(writeConfig(t, tt.file)))
			}

			_, err := config.Load(tt.args, opts...)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("CHIPMON_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))

	_, err := config.Load(nil, config.WithoutDotEnv())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, config.ErrReadConfig))
}

func TestSimulateSettings(t *testing.T) {
	isolate(t)

	cfg, err := config.Load([]string{"--mode", "simulate", "--fault", "voltage_low", "--cycles", "4"},
		config.WithoutDotEnv())
	require.NoError(t, err)

	assert.Equal(t, config.ModeSimulate, cfg.Mode)
	assert.Equal(t, monitor.ErrorVoltageLow, cfg.Fault())
	assert.Equal(t, 4, cfg.Simulate.Cycles)
}

func TestHardwareConfig(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
[hardware]
backend = "modbus"

[hardware.modbus]
endpoint = "10.0.0.5:502"
slave_id = 7
timeout = "500ms"
sensor_address = 64
`)

	cfg, err := config.Load(nil, config.WithConfigFile(path), config.WithoutDotEnv())
	require.NoError(t, err)

	hc := cfg.HardwareConfig()
	assert.Equal(t, hw.BackendModbus, hc.Backend)
	assert.Equal(t, "10.0.0.5:502", hc.Modbus.Endpoint)
	assert.Equal(t, uint8(7), hc.Modbus.SlaveID)
	assert.Equal(t, 500*time.Millisecond, hc.Modbus.Timeout)
	assert.Equal(t, uint16(64), hc.Modbus.SensorAddress)
	assert.Equal(t, uint32(monitor.DefaultRegisterBase), hc.Modbus.RegisterBase)
	assert.Equal(t, cfg.ThresholdsConfig().Nominal(), hc.Nominal)
}
