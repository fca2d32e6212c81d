package supervisor

import (
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
)

const (
	DefaultInterval        = time.Second
	DefaultRecoveryTimeout = 30 * time.Second
)

type Config struct {
	Interval        time.Duration // monitoring cycle period
	RecoveryTimeout time.Duration // upper bound for one recovery run
}

func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		RecoveryTimeout: DefaultRecoveryTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	}
	if c.RecoveryTimeout <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "recovery timeout must be positive")
	}
	return nil
}
