package recovery

import (
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 60 * time.Second
	DefaultResetDelay   = 100 * time.Millisecond
	DefaultLogCapacity  = 100
	DefaultSummarySize  = 10
	MaxDescriptionBytes = 127
)

type Config struct {
	MaxAttempts int           // bounded retries in a comprehensive recovery
	BaseDelay   time.Duration // backoff unit
	MaxDelay    time.Duration // backoff ceiling
	ResetDelay  time.Duration // settle time for interface resets
	LogCapacity int
	SummarySize int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		ResetDelay:  DefaultResetDelay,
		LogCapacity: DefaultLogCapacity,
		SummarySize: DefaultSummarySize,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch {
	case c.MaxAttempts < 1:
		return errFactory.WithData(ErrInvalidConfig, "max attempts must be positive")
	case c.BaseDelay < 0 || c.ResetDelay < 0:
		return errFactory.WithData(ErrInvalidConfig, "delays must not be negative")
	case c.MaxDelay < c.BaseDelay:
		return errFactory.WithData(ErrInvalidConfig, "max delay must not be below base delay")
	case c.LogCapacity < 1:
		return errFactory.WithData(ErrInvalidConfig, "log capacity must be positive")
	case c.SummarySize < 0:
		return errFactory.WithData(ErrInvalidConfig, "summary size must not be negative")
	}

	return nil
}

func (c Config) backoff() Backoff {
	return Backoff{Base: c.BaseDelay, Max: c.MaxDelay}
}
