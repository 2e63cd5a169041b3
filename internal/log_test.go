package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
}

func TestLogger_LevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelInfo).With("tail")

	logger.Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	logger.Info("tail at %.1f", 90.0)
	assert.Contains(t, buf.String(), "[INFO] [tail] tail at 90.0")

	buf.Reset()
	logger.Error("boom")
	assert.Contains(t, buf.String(), "[ERROR] [tail] boom")
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestLogger_NilIsSilent(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.With("x").Warn("nothing %s", "here")
		logger.Info("still nothing")
	})
}
