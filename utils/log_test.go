package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(traceLevel)
	log := NewLogger(core, DEBUG)

	log.Trace("hidden %d", 1)
	log.Debug("debug %d", 2)
	log.Critical("stop %s", "now")
	require.Equal(t, 2, logs.Len())

	entries := logs.AllUntimed()
	assert.Equal(t, "debug 2", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.DPanicLevel, entries[1].Level)

	log.SetMinLevel(TRACE)
	assert.True(t, log.Enabled(TRACE))
	log.Trace("visible")
	assert.Equal(t, 1, logs.FilterMessage("visible").Len())
}

func TestLoggerWith(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewLogger(core, INFO).With("run_id", "abc")

	log.Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["run_id"])
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nav.log")
	log, err := NewFileLogger(path, TRACE, false)
	require.NoError(t, err)

	log.Trace("tick %d", 7)
	log.Warn("careful")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"TRACE"`)
	assert.Contains(t, lines[0], `"msg":"tick 7"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "CRITICAL", CRITICAL.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
