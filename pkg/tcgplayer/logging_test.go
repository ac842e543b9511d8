package tcgplayer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joshwilhelmi/tcgplayer-go/pkg/tcgplayer"
)

func TestZapLogger_ForwardsFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := tcgplayer.NewZapLogger(zap.New(core))

	logger.Info("Request Complete", map[string]interface{}{
		"method": "GET",
		"status": 200,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Request Complete", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.EqualValues(t, 200, fields["status"])
}

func TestZapLogger_Levels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := tcgplayer.NewZapLogger(zap.New(core))

	logger.Debug("debug msg", nil)
	logger.Info("info msg", nil)
	logger.Warn("warn msg", nil)
	logger.Error("error msg", nil)

	require.Equal(t, 4, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[3].Level)
}

func TestNewProductionAndDevelopmentLoggers(t *testing.T) {
	t.Parallel()

	prod, err := tcgplayer.NewProductionLogger()
	require.NoError(t, err)
	require.NotNil(t, prod)

	dev, err := tcgplayer.NewDevelopmentLogger()
	require.NoError(t, err)
	require.NotNil(t, dev)
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := tcgplayer.NewNopLogger()

	// All levels are safe no-ops.
	logger.Debug("msg", nil)
	logger.Info("msg", map[string]interface{}{"k": "v"})
	logger.Warn("msg", nil)
	logger.Error("msg", nil)
}
