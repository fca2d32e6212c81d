package events

import (
	"time"

	"codeberg.org/mutker/chipmon/internal/errors"
)

const (
	defaultBroker         = "tcp://localhost:1883"
	defaultClientID       = "chipmon"
	defaultTopicPrefix    = "chipmon"
	defaultQoS            = 1
	defaultBufferSize     = 64
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second
	defaultPingTimeout    = 10 * time.Second
	disconnectQuiesceMS   = 250
)

type Config struct {
	Enabled        bool
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	BufferSize     int
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Broker:         defaultBroker,
		ClientID:       defaultClientID,
		TopicPrefix:    defaultTopicPrefix,
		QoS:            defaultQoS,
		BufferSize:     defaultBufferSize,
		PublishTimeout: defaultPublishTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return errFactory.New(ErrInvalidBroker)
	}
	if c.TopicPrefix == "" {
		return errFactory.WithData(ErrInvalidConfig, "topic prefix must not be empty")
	}
	if c.QoS > 2 {
		return errFactory.WithData(ErrInvalidConfig, "qos must be 0, 1 or 2")
	}
	if c.BufferSize < 1 {
		return errFactory.WithData(ErrInvalidConfig, "buffer size must be positive")
	}
	if c.PublishTimeout <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "publish timeout must be positive")
	}
	return nil
}
