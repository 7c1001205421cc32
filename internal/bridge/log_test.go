package bridge

import (
	"testing"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRouter_LogsDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	h := newHarness(t, nil)
	h.get("/auth/nobody/callback")
	h.get("/auth/facebook/callback")

	unknown := logs.FilterMessage("callback for unknown handler").All()
	require.Len(t, unknown, 1)
	assert.Equal(t, zapcore.WarnLevel, unknown[0].Level)
	assert.Equal(t, "nobody", unknown[0].ContextMap()["provider"])

	pending := logs.FilterMessage("callback not authenticated").All()
	require.Len(t, pending, 1)
	assert.Equal(t, "/auth/facebook", pending[0].ContextMap()["location"])
}
