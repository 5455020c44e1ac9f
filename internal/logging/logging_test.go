package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"qcref/internal/config"
)

func TestNewHonoursLevelAndVerbose(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	verbose, err := New(config.LoggingConfig{Level: "error", Format: "console"}, true)
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))

	_, err = New(config.LoggingConfig{Level: "chatty"}, false)
	assert.Error(t, err)
}

func TestForServiceWritesKeyValues(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	svc := ForService(zap.New(obsCore))
	svc.Debug("edit skipped", "id", int64(7))
	svc.Info("changes applied", "updated", 2)
	svc.Warn("archive upload failed", "key", "seed-uploads/x")
	svc.Error("boom")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "service", entries[0].LoggerName)
	assert.Equal(t, int64(7), entries[0].ContextMap()["id"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["updated"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[3].Message)
}

func TestForServiceNilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { ForService(nil).Info("ignored", "k", "v") })
}
