package chip

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrInvalidChipCount = errors.ErrorCode("chip_invalid_count")
	ErrSession          = errors.ErrorCode("chip_session_failed")
	ErrRegisterLayout   = errors.ErrorCode("chip_register_layout_failed")
)
