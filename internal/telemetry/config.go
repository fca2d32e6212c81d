package telemetry

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	defaultListen    = ":9464"
	defaultNamespace = "chipmon"
)

type Config struct {
	Enabled   bool
	Listen    string
	Namespace string
}

func DefaultConfig() Config {
	return Config{
		Listen:    defaultListen,
		Namespace: defaultNamespace,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.Listen == "" {
		return errFactory.New(ErrInvalidListen)
	}
	if c.Namespace == "" {
		return errFactory.WithData(ErrInvalidConfig, "namespace must not be empty")
	}
	return nil
}
