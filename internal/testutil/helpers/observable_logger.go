package helpers

import (
	"github.com/douhashi/kobito/internal/logger"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger は出力を記録するロガーを返す
func NewObservedLogger(level zapcore.Level) (logger.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	return logger.NewWithCore(core), recorded
}
