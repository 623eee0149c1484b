package logutils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	_zapLogger   *zap.Logger
	_zapLoggerMu sync.RWMutex
)

// LogSettings configures the root logger.
type LogSettings struct {
	Enabled         bool   `json:"Enabled"`
	Level           string `json:"Level"`
	File            string `json:"File"`
	MaxSize         int    `json:"MaxSize"`
	MaxBackups      int    `json:"MaxBackups"`
	CompressRotated bool   `json:"CompressRotated"`
}

// ZapLogger returns the process wide logger. It is a no-op logger until
// OverrideRootLogWithConfig is called.
func ZapLogger() *zap.Logger {
	_zapLoggerMu.RLock()
	defer _zapLoggerMu.RUnlock()
	if _zapLogger == nil {
		return zap.NewNop()
	}
	return _zapLogger
}

func setZapLogger(logger *zap.Logger) {
	_zapLoggerMu.Lock()
	defer _zapLoggerMu.Unlock()
	_zapLogger = logger
}

// OverrideRootLogWithConfig replaces the root logger according to settings.
func OverrideRootLogWithConfig(settings LogSettings) error {
	if !settings.Enabled {
		setZapLogger(zap.NewNop())
		return nil
	}

	level, err := lvlFromString(settings.Level)
	if err != nil {
		return err
	}

	var syncer zapcore.WriteSyncer
	if settings.File != "" {
		syncer = ZapSyncerWithRotation(FileOptions{
			Filename:   settings.File,
			MaxSize:    settings.MaxSize,
			MaxBackups: settings.MaxBackups,
			Compress:   settings.CompressRotated,
		})
	} else {
		syncer = zapcore.Lock(os.Stderr)
	}

	setZapLogger(newZapLogger(syncer, level))
	return nil
}

func newZapLogger(syncer zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), syncer, level)
	return zap.New(core, zap.AddCaller())
}

func lvlFromString(lvl string) (zapcore.Level, error) {
	if lvl == "" {
		return zapcore.InfoLevel, nil
	}
	// geth style "TRACE" has no zap counterpart
	if strings.EqualFold(lvl, "trace") {
		return zapcore.DebugLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(lvl))
}
