// Package util provides helper functions for logging events
package util

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// SetupLogger installs a console logger. Debug enables Debug-level output.
func SetupLogger(debug bool) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewExample()
	}
	SetLogger(l.Sugar())
}

// SetLogger replaces the package logger. Passing nil mutes logging.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns the current package logger.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug prints verbose diagnostics.
func Debug(msg string, args ...any) {
	Logger().Debugf(msg, args...)
}

// Info prints general system information messages.
func Info(msg string, args ...any) {
	Logger().Infof(msg, args...)
}

// Error prints error messages.
func Error(msg string, args ...any) {
	Logger().Errorf(msg, args...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}
