package events

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidBroker = errors.ErrorCode("events_invalid_broker")
	ErrConnect       = errors.ErrorCode("events_connect_failed")
	ErrPublish       = errors.ErrorCode("events_publish_failed")
	ErrEncode        = errors.ErrorCode("events_encode_failed")
)
