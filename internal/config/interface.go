package config

// Mode selects what the binary does after loading its configuration.
type Mode string

const (
	ModeRun      Mode = "run"      // supervise the configured chips until stopped
	ModeSelfTest Mode = "selftest" // run the validation battery and exit
	ModeSimulate Mode = "simulate" // inject a fault into the simulator and recover
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeRun, ModeSelfTest, ModeSimulate:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	return string(m)
}

// Option defines a configuration option that can be passed to Load
type Option func(*options)

type options struct {
	configPath string
	envPrefix  string
	dotenv     bool
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithEnvPrefix specifies a custom environment variable prefix.
// Default is "CHIPMON"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithoutDotEnv skips loading a .env file from the working directory.
func WithoutDotEnv() Option {
	return func(o *options) {
		o.dotenv = false
	}
}
