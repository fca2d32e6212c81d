package config

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrReadConfig      = errors.ErrReadConfig
	ErrBindFlags       = errors.ErrBindFlags
	ErrParseFlags      = errors.ErrorCode("config_parse_flags_failed")
	ErrDecodeConfig    = errors.ErrorCode("config_decode_failed")
	ErrInvalidMode     = errors.ErrorCode("config_invalid_mode")
	ErrInvalidLogLevel = errors.ErrInvalidLogLevel
	ErrInvalidFault    = errors.ErrorCode("config_invalid_fault")
)
