package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"development", "production", ""} {
		l, err := New(mode, "debug")
		require.NoError(t, err, mode)
		require.NotNil(t, l.SugaredLogger)
	}

	_, err := New("development", "loud")
	assert.Error(t, err)
}

func TestLogger_RedactsCredentials(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "test")

	l.Warn("verify failed", "token", "eyJhbGciOi.abc.def", "user_id", "u1")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["token"])
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestLogger_OddKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromZap(zap.New(core))

	assert.NotPanics(t, func() { l.Info("dangling", "key") })
	assert.Equal(t, 1, logs.FilterMessage("dangling").Len())
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Debug("d")
		l.Error("e", "k", "v")
		l.With("a", 1).Info("i")
		l.Sync()
	})
}
