package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerHonoursLevel(t *testing.T) {
	l, err := NewLogger(Options{Service: "svc", Env: "test", Level: "warn"})
	require.NoError(t, err)

	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewLoggerCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	l, err := NewLogger(Options{Service: "svc", File: path})
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"service":"svc"`)
}
