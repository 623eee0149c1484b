package common

import (
	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/logutils"
)

// LogOnPanic should be deferred at the top of every goroutine.
func LogOnPanic() {
	if err := recover(); err != nil {
		logutils.ZapLogger().Error("panic in goroutine", zap.Any("error", err), zap.Stack("stacktrace"))
		panic(err)
	}
}
