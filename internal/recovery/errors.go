package recovery

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrNilState      = errors.ErrorCode("recovery_nil_state")
	ErrInvalidRetry  = errors.ErrorCode("recovery_invalid_retry_count")
	ErrAborted       = errors.ErrorCode("recovery_aborted")
)
