package monitor

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrNilState         = errors.ErrorCode("monitor_nil_state")
	ErrRegisterLimit    = errors.ErrorCode("monitor_register_limit")
	ErrRegisterRead     = errors.ErrorCode("monitor_register_read_failed")
	ErrRegisterWrite    = errors.ErrorCode("monitor_register_write_failed")
	ErrInvalidRange     = errors.ErrorCode("monitor_invalid_range")
	ErrInvalidThreshold = errors.ErrorCode("monitor_invalid_threshold")
)
