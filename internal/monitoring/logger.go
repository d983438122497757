// Package monitoring holds the process-wide diagnostic logger used by the
// dataset, cache and sync packages.
package monitoring

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or Install. Tests can mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewLogger builds the zap logger used by the binaries: a human-readable
// development logger when debug is set, JSON production output otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Install routes Logf through l and returns a function restoring the
// previous logger. The caller still owns l and should Sync it on exit.
func Install(l *zap.Logger) (restore func()) {
	prev := Logf
	sugar := l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	Logf = func(format string, v ...interface{}) { sugar.Infof(format, v...) }
	return func() { Logf = prev }
}
