// Package logger provides the process-wide logging facility for the GIS
// resource server. It is a thin wrapper over zap's sugared logger so that
// packages can log without carrying a logger dependency through every
// constructor.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger
)

// Initialize configures the global logger. Structured JSON output is used
// unless UNSTRUCTURED_LOGS=true, which switches to a console encoder for
// local development.
func Initialize() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("UNSTRUCTURED_LOGS") == "true" {
		cfg = zap.NewDevelopmentConfig()
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a no-op logger rather than refusing to start.
		l = zap.NewNop()
	}

	mu.Lock()
	log = l.Sugar()
	mu.Unlock()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l == nil {
		Initialize()
		mu.RLock()
		l = log
		mu.RUnlock()
	}
	return l
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { get().Debugf(format, args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { get().Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { get().Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// Fatalf logs a formatted message and exits the process.
func Fatalf(format string, args ...any) { get().Fatalf(format, args...) }

// Sync flushes any buffered log entries.
func Sync() {
	if l := get(); l != nil {
		_ = l.Sync()
	}
}
