package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	provider, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.False(t, provider.IsEnabled())
	assert.Nil(t, provider.provider)

	// All lifecycle methods are no-ops without a pipeline.
	assert.NoError(t, provider.ForceFlush(context.Background()))
	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewLoggerProvider_EnabledWithoutCollector(t *testing.T) {
	// The exporter connects lazily, so construction succeeds even when no
	// collector is listening.
	provider, err := NewLoggerProvider(context.Background(), LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "posbridge-test",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provider.provider)
	assert.True(t, provider.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_ = provider.Shutdown(ctx)
}

func TestNewZapOTELCore_DisabledIsNop(t *testing.T) {
	core := NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "posbridge",
		LoggerProvider: nil,
		Level:          zapcore.InfoLevel,
	})
	require.NotNil(t, core)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	disabled, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	core = NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "posbridge",
		LoggerProvider: disabled,
		Level:          zapcore.InfoLevel,
	})
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewBridgedLogger_WritesToBothCores(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	otelCore, otelLogs := observer.New(zapcore.DebugLevel)

	log := NewBridgedLogger(baseCore, otelCore)
	log.Info("order accepted", zap.String("platform", "trendyol"))

	require.Equal(t, 1, baseLogs.Len())
	require.Equal(t, 1, otelLogs.Len())
	assert.Equal(t, "order accepted", baseLogs.All()[0].Message)
	assert.Equal(t, "order accepted", otelLogs.All()[0].Message)
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	log := zap.New(core)
	log.Debug("ignored")
	log.Info("ignored too")
	log.Warn("kept")
	log.Error("also kept")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, "also kept", logs.All()[1].Message)
}

func TestLevelFilterCore_WithPreservesThreshold(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	log := zap.New(core).With(zap.String("tenant_id", "t-1"))
	log.Info("ignored")
	log.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "t-1", entry.ContextMap()["tenant_id"])
}
