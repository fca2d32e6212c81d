package hw

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrConnectFailed   = errors.ErrorCode("hw_connect_failed")
	ErrAddressRange    = errors.ErrorCode("hw_address_out_of_range")
	ErrReadFailed      = errors.ErrorCode("hw_read_failed")
	ErrWriteFailed     = errors.ErrorCode("hw_write_failed")
	ErrShortResponse   = errors.ErrorCode("hw_short_response")
	ErrRegisterMap     = errors.ErrorCode("hw_register_map_invalid")
	ErrReadRegisterMap = errors.ErrorCode("hw_register_map_read_failed")
	ErrUnknownBackend  = errors.ErrorCode("hw_unknown_backend")
)
