package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mask uint8

func (m mask) String() string { return "Position|Velocity" }

func TestFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelDebug)

	l.Named("physics").With(String("scene", "yard")).Info("stepped",
		Int("bodies", 3),
		Uint64("frame", 12),
		Stringer("changes", mask(0)),
		Error(errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "physics", e.LoggerName)
	assert.Equal(t, "stepped", e.Message)
	ctx := e.ContextMap()
	assert.Equal(t, "yard", ctx["scene"])
	assert.Equal(t, int64(3), ctx["bodies"])
	assert.Equal(t, uint64(12), ctx["frame"])
	assert.Equal(t, "Position|Velocity", ctx["changes"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, LevelDebug, l.Level())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": LevelInfo, "debug": LevelDebug, "warning": LevelWarn, "error": LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "warn", LevelWarn.String())
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l.Level())

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)

	NewNop().Error("discarded")
}
