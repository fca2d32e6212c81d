package telemetry

import "codeberg.org/mutker/chipmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidListen = errors.ErrorCode("telemetry_invalid_listen_address")

	// Collection Errors
	ErrInvalidMetrics   = errors.ErrorCode("telemetry_invalid_snapshot")
	ErrOperationTimeout = errors.ErrTimeout

	// Server Errors
	ErrServerStart    = errors.ErrorCode("telemetry_server_start_failed")
	ErrServerShutdown = errors.ErrShutdownFailed
)
