package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredFields(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	var buf bytes.Buffer
	log := logger.New(&buf, logger.DebugLevel).With("chip", "0")

	log.Info().Int("retry_count", 2).Msg("Recovery attempt")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "0", line["chip"])
	assert.Equal(t, float64(2), line["retry_count"])
	assert.Equal(t, "Recovery attempt", line["message"])
}

func TestErrorWithContextCarriesCode(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	var buf bytes.Buffer
	log := logger.New(&buf, logger.DebugLevel)

	err := errors.New().New(errors.ErrReadSensors)
	log.ErrorWithContext(err, "supervisor", "tick").Send()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, string(errors.ErrReadSensors), line["error_code"])
	assert.Equal(t, "supervisor", line["component"])
	assert.Equal(t, "tick", line["operation"])
}

func TestLevelFiltersDebug(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	var buf bytes.Buffer
	log := logger.New(&buf, logger.WarnLevel)

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  logger.LogLevel
		valid bool
	}{
		{"debug", logger.DebugLevel, true},
		{"INFO", logger.InfoLevel, true},
		{"warning", logger.WarnLevel, true},
		{"error", logger.ErrorLevel, true},
		{"loud", logger.WarnLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().Error().Str("k", "v").Msg("dropped")
	})
}
