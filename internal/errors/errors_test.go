package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/chipmon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryNewUsesDefaultMessage(t *testing.T) {
	err := errors.New().New(errors.ErrTimeout)

	assert.Equal(t, errors.ErrTimeout, err.Code())
	assert.Equal(t, "Operation timed out [operation_timeout]", err.Error())
}

func TestFactoryWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("bus reset")
	err := errors.New().Wrap(errors.ErrScanRegisters, cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bus reset")
	assert.Contains(t, err.Error(), string(errors.ErrScanRegisters))
}

func TestWithMessageAndData(t *testing.T) {
	base := errors.New().New(errors.ErrInvalidConfig)
	withMsg := base.WithMessage("voltage bounds inverted")
	withData := withMsg.WithData("min=3.6 max=3.0")

	assert.Equal(t, "voltage bounds inverted [invalid_configuration]", withMsg.Error())
	assert.Equal(t, "min=3.6 max=3.0", withData.GetData())
	assert.Equal(t, errors.ErrInvalidConfig, withData.Code())
	assert.Nil(t, base.GetData(), "original error must not be mutated")
}

func TestHasCodeWalksChain(t *testing.T) {
	factory := errors.New()
	inner := factory.New(errors.ErrReadSensors)
	outer := factory.Wrap(errors.ErrMainLoop, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrMainLoop))
	assert.True(t, errors.HasCode(outer, errors.ErrReadSensors))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(stderrors.New("plain"), errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestGetErrorMessageFallsBackToCode(t *testing.T) {
	assert.Equal(t, "custom_code", errors.GetErrorMessage(errors.ErrorCode("custom_code")))
}
