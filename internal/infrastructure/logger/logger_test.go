package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("webhook received", zap.String("platform", "trendyol"))
	log.Debug("suppressed at info level")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"msg":"webhook received"`)
	assert.Contains(t, out, `"platform":"trendyol"`)
	assert.NotContains(t, out, "suppressed at info level")
}

func TestNew_UnwritableOutputFallsBack(t *testing.T) {
	// A directory is not a writable log file; New must not fail
	log, err := New(&Config{Level: "info", Format: "json", Output: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestConfig_Level(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		cfg := &Config{Level: in}
		assert.Equal(t, want, cfg.level(), in)
	}
}

func TestConfig_ConsoleEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	log, err := New(&Config{Level: "debug", Format: "console", Output: path, TimeFormat: "15:04:05"})
	require.NoError(t, err)

	log.Info("polling cycle complete")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Console output is line-oriented text, not JSON
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, "polling cycle complete")
	assert.False(t, strings.HasPrefix(line, "{"))
}

func TestSync(t *testing.T) {
	log, err := New(&Config{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "s.log")})
	require.NoError(t, err)
	assert.NoError(t, Sync(log))
}
