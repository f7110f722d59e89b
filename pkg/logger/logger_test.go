package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestOrDefault(t *testing.T) {
	own := zap.NewNop()
	assert.Same(t, own, OrDefault(own, "x"))
	assert.NotNil(t, OrDefault(nil, "x"))
}

func TestWithContext(t *testing.T) {
	require.NoError(t, Init(Config{Level: "warn"}))
	ctx := context.WithValue(context.Background(), TableKey, "Events")
	l := WithContext(ctx)
	assert.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
}
