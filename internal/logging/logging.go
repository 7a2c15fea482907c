// Package logging provides the structured logging facade used across
// roadcore. It wraps zap behind a small interface so detection code never
// depends on a concrete logging backend.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields holds structured log fields
type Fields map[string]any

// Logger is the logging interface used by all roadcore components
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	WithFields(fields Fields) Logger
}

type zapLogger struct {
	base *zap.Logger
}

var (
	mu         sync.RWMutex
	rootLogger = newZapLogger("info")
)

// Configure replaces the process-wide root logger with one at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func Configure(level string) {
	mu.Lock()
	defer mu.Unlock()
	rootLogger = newZapLogger(level)
}

// Default returns the process-wide root logger
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return rootLogger
}

// WithFields returns a logger scoped with the given fields
func WithFields(fields Fields) Logger {
	return Default().WithFields(fields)
}

func newZapLogger(level string) *zapLogger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return &zapLogger{base: zap.New(core)}
}

func (l *zapLogger) zapFields(fields []Fields) []zap.Field {
	var out []zap.Field
	for _, fm := range fields {
		for k, v := range fm {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func (l *zapLogger) Debug(msg string, fields ...Fields) {
	l.base.Debug(msg, l.zapFields(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...Fields) {
	l.base.Info(msg, l.zapFields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...Fields) {
	l.base.Warn(msg, l.zapFields(fields)...)
}

func (l *zapLogger) Error(err error, msg string, fields ...Fields) {
	zf := l.zapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.base.Error(msg, zf...)
}

func (l *zapLogger) WithFields(fields Fields) Logger {
	return &zapLogger{base: l.base.With(l.zapFields([]Fields{fields})...)}
}
