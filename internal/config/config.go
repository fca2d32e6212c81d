package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/events"
	"codeberg.org/mutker/chipmon/internal/hw"
	"codeberg.org/mutker/chipmon/internal/metrics"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	"codeberg.org/mutker/chipmon/internal/supervisor"
	"codeberg.org/mutker/chipmon/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "CHIPMON"
	DefaultLogLevel  = "warning"
	DefaultPIDFile   = "chipmon.pid"
	configName       = "chipmon"
	configType       = "toml"
)

type Config struct {
	Mode     Mode   `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
	PIDFile  string `mapstructure:"pid_file"`

	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Recovery   RecoveryConfig   `mapstructure:"recovery"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Hardware   HardwareConfig   `mapstructure:"hardware"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Simulate   SimulateConfig   `mapstructure:"simulate"`
}

type ThresholdsConfig struct {
	MinVoltage            float64 `mapstructure:"min_voltage"`
	MaxVoltage            float64 `mapstructure:"max_voltage"`
	NominalVoltage        float64 `mapstructure:"nominal_voltage"`
	TempWarning           float64 `mapstructure:"temp_warning"`
	TempCritical          float64 `mapstructure:"temp_critical"`
	TempNormal            float64 `mapstructure:"temp_normal"`
	MinTemperatureEnabled bool    `mapstructure:"min_temperature_enabled"`
	MinTemperature        float64 `mapstructure:"min_temperature"`
	MinCurrent            float64 `mapstructure:"min_current"`
	MaxCurrent            float64 `mapstructure:"max_current"`
	NominalCurrent        float64 `mapstructure:"nominal_current"`
	MaxErrors             int     `mapstructure:"max_errors"`
}

type RecoveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	ResetDelay  time.Duration `mapstructure:"reset_delay"`
	LogCapacity int           `mapstructure:"log_capacity"`
	SummarySize int           `mapstructure:"summary_size"`
}

type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`
	Chips           int           `mapstructure:"chips"`
	RegisterMap     string        `mapstructure:"register_map"`
}

type HardwareConfig struct {
	Backend string       `mapstructure:"backend"`
	Modbus  ModbusConfig `mapstructure:"modbus"`
}

type ModbusConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	SlaveID       uint8         `mapstructure:"slave_id"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RegisterBase  uint32        `mapstructure:"register_base"`
	SensorAddress uint16        `mapstructure:"sensor_address"`
}

type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DBPath       string `mapstructure:"db_path"`
	BackupDir    string `mapstructure:"backup_dir"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
}

type TelemetryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Listen    string `mapstructure:"listen"`
	Namespace string `mapstructure:"namespace"`
}

type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            byte          `mapstructure:"qos"`
	BufferSize     int           `mapstructure:"buffer_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// SimulateConfig drives the simulate mode: inject Fault, then run up to
// Cycles monitoring cycles.
type SimulateConfig struct {
	Fault  string `mapstructure:"fault"`
	Cycles int    `mapstructure:"cycles"`
}

func DefaultConfig() Config {
	th := monitor.DefaultThresholds()
	rc := recovery.DefaultConfig()
	sc := supervisor.DefaultConfig()
	mc := metrics.DefaultConfig()
	tc := telemetry.DefaultConfig()
	ec := events.DefaultConfig()

	return Config{
		Mode:     ModeRun,
		LogLevel: DefaultLogLevel,
		PIDFile:  DefaultPIDFile,
		Thresholds: ThresholdsConfig{
			MinVoltage:            th.MinVoltage,
			MaxVoltage:            th.MaxVoltage,
			NominalVoltage:        th.NominalVoltage,
			TempWarning:           th.TempWarning,
			TempCritical:          th.TempCritical,
			TempNormal:            th.TempNormal,
			MinTemperatureEnabled: th.MinTemperatureEnabled,
			MinTemperature:        th.MinTemperature,
			MinCurrent:            th.MinCurrent,
			MaxCurrent:            th.MaxCurrent,
			NominalCurrent:        th.NominalCurrent,
			MaxErrors:             th.MaxErrors,
		},
		Recovery: RecoveryConfig{
			MaxAttempts: rc.MaxAttempts,
			BaseDelay:   rc.BaseDelay,
			MaxDelay:    rc.MaxDelay,
			ResetDelay:  rc.ResetDelay,
			LogCapacity: rc.LogCapacity,
			SummarySize: rc.SummarySize,
		},
		Monitor: MonitorConfig{
			Interval:        sc.Interval,
			RecoveryTimeout: sc.RecoveryTimeout,
			Chips:           1,
		},
		Hardware: HardwareConfig{
			Backend: hw.BackendSimulator,
			Modbus: ModbusConfig{
				Timeout:      time.Second,
				SlaveID:      1,
				RegisterBase: monitor.DefaultRegisterBase,
			},
		},
		Metrics: MetricsConfig{
			Enabled:      mc.Enabled,
			DBPath:       mc.DBPath,
			BatchSize:    mc.BatchSize,
			BatchTimeout: mc.BatchTimeout,
		},
		Telemetry: TelemetryConfig{
			Enabled:   tc.Enabled,
			Listen:    tc.Listen,
			Namespace: tc.Namespace,
		},
		MQTT: MQTTConfig{
			Enabled:        ec.Enabled,
			Broker:         ec.Broker,
			ClientID:       ec.ClientID,
			TopicPrefix:    ec.TopicPrefix,
			QoS:            ec.QoS,
			BufferSize:     ec.BufferSize,
			PublishTimeout: ec.PublishTimeout,
		},
		Simulate: SimulateConfig{
			Fault:  "temperature_high",
			Cycles: 10,
		},
	}
}

// Load reads the configuration from, in increasing precedence: defaults,
// the TOML config file, CHIPMON_* environment variables (a .env file in the
// working directory is loaded first) and command line flags.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix, dotenv: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.dotenv {
		// A missing .env file is not an error
		_ = godotenv.Load()
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(ErrParseFlags, err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if err := readConfigFile(v, fs, o); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(ErrBindFlags, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(ErrDecodeConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet, o options) error {
	errFactory := errors.New()

	path := o.configPath
	if f := fs.Lookup("config"); f != nil && f.Changed {
		path = f.Value.String()
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath("/etc/chipmon")
	v.AddConfigPath("$HOME/.config/chipmon")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(ErrReadConfig, err)
		}
	}
	return nil
}

func newFlagSet() *pflag.FlagSet {
	d := DefaultConfig()
	fs := pflag.NewFlagSet("chipmon", pflag.ContinueOnError)

	fs.String("config", "", "Path to the configuration file")
	fs.String("mode", d.Mode.String(), "Mode: run, selftest or simulate")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warning or error")
	fs.String("pid-file", d.PIDFile, "PID file name or path")
	fs.Duration("interval", d.Monitor.Interval, "Monitoring interval")
	fs.Duration("recovery-timeout", d.Monitor.RecoveryTimeout, "Upper bound for one recovery run")
	fs.Int("chips", d.Monitor.Chips, "Number of chips to monitor (1-8)")
	fs.String("register-map", "", "YAML register map file")
	fs.String("backend", d.Hardware.Backend, "Hardware backend: simulator or modbus")
	fs.String("modbus-endpoint", "", "Modbus TCP endpoint (host:port)")
	fs.Bool("metrics", d.Metrics.Enabled, "Record snapshots to the metrics database")
	fs.String("metrics-db", d.Metrics.DBPath, "Metrics database path")
	fs.Bool("telemetry", d.Telemetry.Enabled, "Serve /metrics and /health")
	fs.String("telemetry-listen", d.Telemetry.Listen, "Telemetry listen address")
	fs.Bool("mqtt", d.MQTT.Enabled, "Publish recovery events over MQTT")
	fs.String("mqtt-broker", d.MQTT.Broker, "MQTT broker URL")
	fs.String("fault", d.Simulate.Fault, "Fault injected in simulate mode")
	fs.Int("cycles", d.Simulate.Cycles, "Cycles run in simulate mode")

	return fs
}

var flagKeys = map[string]string{
	"mode":             "mode",
	"debug":            "debug",
	"verbose":          "verbose",
	"log-level":        "log_level",
	"pid-file":         "pid_file",
	"interval":         "monitor.interval",
	"recovery-timeout": "monitor.recovery_timeout",
	"chips":            "monitor.chips",
	"register-map":     "monitor.register_map",
	"backend":          "hardware.backend",
	"modbus-endpoint":  "hardware.modbus.endpoint",
	"metrics":          "metrics.enabled",
	"metrics-db":       "metrics.db_path",
	"telemetry":        "telemetry.enabled",
	"telemetry-listen": "telemetry.listen",
	"mqtt":             "mqtt.enabled",
	"mqtt-broker":      "mqtt.broker",
	"fault":            "simulate.fault",
	"cycles":           "simulate.cycles",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("mode", d.Mode.String())
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("pid_file", d.PIDFile)

	v.SetDefault("thresholds.min_voltage", d.Thresholds.MinVoltage)
	v.SetDefault("thresholds.max_voltage", d.Thresholds.MaxVoltage)
	v.SetDefault("thresholds.nominal_voltage", d.Thresholds.NominalVoltage)
	v.SetDefault("thresholds.temp_warning", d.Thresholds.TempWarning)
	v.SetDefault("thresholds.temp_critical", d.Thresholds.TempCritical)
	v.SetDefault("thresholds.temp_normal", d.Thresholds.TempNormal)
	v.SetDefault("thresholds.min_temperature_enabled", d.Thresholds.MinTemperatureEnabled)
	v.SetDefault("thresholds.min_temperature", d.Thresholds.MinTemperature)
	v.SetDefault("thresholds.min_current", d.Thresholds.MinCurrent)
	v.SetDefault("thresholds.max_current", d.Thresholds.MaxCurrent)
	v.SetDefault("thresholds.nominal_current", d.Thresholds.NominalCurrent)
	v.SetDefault("thresholds.max_errors", d.Thresholds.MaxErrors)

	v.SetDefault("recovery.max_attempts", d.Recovery.MaxAttempts)
	v.SetDefault("recovery.base_delay", d.Recovery.BaseDelay)
	v.SetDefault("recovery.max_delay", d.Recovery.MaxDelay)
	v.SetDefault("recovery.reset_delay", d.Recovery.ResetDelay)
	v.SetDefault("recovery.log_capacity", d.Recovery.LogCapacity)
	v.SetDefault("recovery.summary_size", d.Recovery.SummarySize)

	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.recovery_timeout", d.Monitor.RecoveryTimeout)
	v.SetDefault("monitor.chips", d.Monitor.Chips)
	v.SetDefault("monitor.register_map", d.Monitor.RegisterMap)

	v.SetDefault("hardware.backend", d.Hardware.Backend)
	v.SetDefault("hardware.modbus.endpoint", d.Hardware.Modbus.Endpoint)
	v.SetDefault("hardware.modbus.slave_id", d.Hardware.Modbus.SlaveID)
	v.SetDefault("hardware.modbus.timeout", d.Hardware.Modbus.Timeout)
	v.SetDefault("hardware.modbus.register_base", d.Hardware.Modbus.RegisterBase)
	v.SetDefault("hardware.modbus.sensor_address", d.Hardware.Modbus.SensorAddress)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.db_path", d.Metrics.DBPath)
	v.SetDefault("metrics.backup_dir", d.Metrics.BackupDir)
	v.SetDefault("metrics.batch_size", d.Metrics.BatchSize)
	v.SetDefault("metrics.batch_timeout", d.Metrics.BatchTimeout)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.listen", d.Telemetry.Listen)
	v.SetDefault("telemetry.namespace", d.Telemetry.Namespace)

	v.SetDefault("mqtt.enabled", d.MQTT.Enabled)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.qos", d.MQTT.QoS)
	v.SetDefault("mqtt.buffer_size", d.MQTT.BufferSize)
	v.SetDefault("mqtt.publish_timeout", d.MQTT.PublishTimeout)

	v.SetDefault("simulate.fault", d.Simulate.Fault)
	v.SetDefault("simulate.cycles", d.Simulate.Cycles)
}
