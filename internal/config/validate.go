package config

import (
	"codeberg.org/mutker/chipmon/internal/chip"
	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/events"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/metrics"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"codeberg.org/mutker/chipmon/internal/supervisor"
	"codeberg.org/mutker/chipmon/internal/telemetry"
)

type sectionCheck struct {
	section  string
	validate func() error
}

// Validate checks the top-level settings and each section against the
// rules of the package that consumes it.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.Mode.IsValid() {
		return errFactory.WithData(ErrInvalidMode, c.Mode.String())
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return errFactory.WithData(ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Monitor.Chips < 1 || c.Monitor.Chips > chip.MaxChips {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
			Max   int
		}{"monitor.chips", c.Monitor.Chips, chip.MaxChips})
	}
	if c.Mode == ModeSimulate {
		if _, ok := monitor.ParseErrorKind(c.Simulate.Fault); !ok {
			return errFactory.WithData(ErrInvalidFault, c.Simulate.Fault)
		}
		if c.Simulate.Cycles < 1 {
			return errFactory.WithData(ErrInvalidConfig, "simulate.cycles must be positive")
		}
	}

	checks := []sectionCheck{
		{"thresholds", c.ThresholdsConfig().Validate},
		{"recovery", c.RecoveryConfig().Validate},
		{"monitor", c.SupervisorConfig().Validate},
		{"metrics", c.MetricsConfig().Validate},
		{"telemetry", c.TelemetryConfig().Validate},
		{"mqtt", c.EventsConfig().Validate},
	}
	if c.Hardware.Backend == hw.BackendModbus {
		checks = append(checks, sectionCheck{"hardware.modbus", c.HardwareConfig().Modbus.Validate})
	}

	for _, check := range checks {
		if err := check.validate(); err != nil {
			return errFactory.Wrap(ErrInvalidConfig, err).WithMessage("Invalid " + check.section + " configuration")
		}
	}

	return nil
}

// Level returns the configured log level. Debug and verbose flags win over
// log_level.
func (c *Config) Level() logger.LogLevel {
	switch {
	case c.Debug:
		return logger.DebugLevel
	case c.Verbose:
		return logger.InfoLevel
	}
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// Fault returns the error kind injected in simulate mode.
func (c *Config) Fault() monitor.ErrorKind {
	kind, _ := monitor.ParseErrorKind(c.Simulate.Fault)
	return kind
}

func (c *Config) ThresholdsConfig() monitor.Thresholds {
	t := c.Thresholds
	return monitor.Thresholds{
		MinVoltage:            t.MinVoltage,
		MaxVoltage:            t.MaxVoltage,
		NominalVoltage:        t.NominalVoltage,
		TempWarning:           t.TempWarning,
		TempCritical:          t.TempCritical,
		TempNormal:            t.TempNormal,
		MinTemperatureEnabled: t.MinTemperatureEnabled,
		MinTemperature:        t.MinTemperature,
		MinCurrent:            t.MinCurrent,
		MaxCurrent:            t.MaxCurrent,
		NominalCurrent:        t.NominalCurrent,
		MaxErrors:             t.MaxErrors,
	}
}

func (c *Config) RecoveryConfig() recovery.Config {
	r := c.Recovery
	return recovery.Config{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		ResetDelay:  r.ResetDelay,
		LogCapacity: r.LogCapacity,
		SummarySize: r.SummarySize,
	}
}

func (c *Config) SupervisorConfig() supervisor.Config {
	return supervisor.Config{
		Interval:        c.Monitor.Interval,
		RecoveryTimeout: c.Monitor.RecoveryTimeout,
	}
}

// HardwareConfig also seeds the simulator with the nominal reading of the
// configured thresholds.
func (c *Config) HardwareConfig() hw.Config {
	m := c.Hardware.Modbus
	return hw.Config{
		Backend: c.Hardware.Backend,
		Modbus: hw.ModbusConfig{
			Endpoint:      m.Endpoint,
			SlaveID:       m.SlaveID,
			Timeout:       m.Timeout,
			RegisterBase:  m.RegisterBase,
			SensorAddress: m.SensorAddress,
		},
		Nominal: c.ThresholdsConfig().Nominal(),
	}
}

func (c *Config) MetricsConfig() metrics.Config {
	m := c.Metrics
	return metrics.Config{
		Enabled:      m.Enabled,
		DBPath:       m.DBPath,
		BackupDir:    m.BackupDir,
		BatchSize:    m.BatchSize,
		BatchTimeout: m.BatchTimeout,
	}
}

func (c *Config) TelemetryConfig() telemetry.Config {
	t := c.Telemetry
	return telemetry.Config{
		Enabled:   t.Enabled,
		Listen:    t.Listen,
		Namespace: t.Namespace,
	}
}

func (c *Config) EventsConfig() events.Config {
	m := c.MQTT
	return events.Config{
		Enabled:        m.Enabled,
		Broker:         m.Broker,
		ClientID:       m.ClientID,
		Username:       m.Username,
		Password:       m.Password,
		TopicPrefix:    m.TopicPrefix,
		QoS:            m.QoS,
		BufferSize:     m.BufferSize,
		PublishTimeout: m.PublishTimeout,
	}
}
