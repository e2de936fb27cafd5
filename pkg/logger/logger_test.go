package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console", Development: true}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(DefaultConfig()))
	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithSink(context.Background(), "ticks")
	ctx = ContextWithFile(ctx, "/tmp/ticks-00000.pqf")
	WithContext(ctx, base).Info("file shipped")
	WithContext(context.Background(), base).Info("bare")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{
		"sink": "ticks",
		"file": "/tmp/ticks-00000.pqf",
	}, entries[0].ContextMap())
	assert.Empty(t, entries[1].ContextMap())

	assert.NotNil(t, WithContext(ctx, nil))
}
