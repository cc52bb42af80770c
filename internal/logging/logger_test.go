package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", false)
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("", true)
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("loud", false)
	require.Error(t, err)
}

func TestWithOperation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	WithOperation(logger, "detector.detect", "req-1").Info("done")
	WithOperation(logger, "detector.detect", "").Info("done")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, map[string]interface{}{"operation": "detector.detect", "request_id": "req-1"}, entries[0].ContextMap())
	require.Equal(t, map[string]interface{}{"operation": "detector.detect"}, entries[1].ContextMap())
}

func TestRequestIDContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc")
	require.Equal(t, "abc", RequestIDFromContext(ctx))
	require.Empty(t, RequestIDFromContext(context.Background()))
}
