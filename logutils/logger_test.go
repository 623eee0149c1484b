package logutils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestZapLoggerDefaultsToNop(t *testing.T) {
	setZapLogger(nil)
	require.NotNil(t, ZapLogger())
	ZapLogger().Info("dropped")
}

func TestOverrideRootLogDisabled(t *testing.T) {
	require.NoError(t, OverrideRootLogWithConfig(LogSettings{Enabled: false}))
	require.False(t, ZapLogger().Core().Enabled(zapcore.ErrorLevel))
}

func TestOverrideRootLogLevel(t *testing.T) {
	require.NoError(t, OverrideRootLogWithConfig(LogSettings{Enabled: true, Level: "WARN"}))
	require.False(t, ZapLogger().Core().Enabled(zapcore.InfoLevel))
	require.True(t, ZapLogger().Core().Enabled(zapcore.WarnLevel))

	require.Error(t, OverrideRootLogWithConfig(LogSettings{Enabled: true, Level: "loud"}))
}

func TestNewZapLoggerWritesFields(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	logger := newZapLogger(zapcore.AddSync(buf), zapcore.DebugLevel)
	logger.Named("connector").Debug("hello", zap.String("origin", "https://dapp.example"))
	require.Contains(t, buf.String(), "connector")
	require.Contains(t, buf.String(), "https://dapp.example")
}
