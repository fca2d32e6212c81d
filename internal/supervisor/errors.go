package supervisor

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInactive      = errors.ErrorCode("supervisor_chip_inactive")
	ErrShutdown      = errors.ErrorCode("supervisor_emergency_shutdown")
	ErrAllInactive   = errors.ErrorCode("supervisor_all_chips_inactive")
	ErrUnstable      = errors.ErrorCode("supervisor_not_stable")
	ErrCancelled     = errors.ErrTimeout
)
