package handlers

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbose raises the log level to debug. Set from the --verbose flag.
var Verbose bool

// newLogger returns the run logger and a flush function. Replaced in tests.
var newLogger = defaultLogger

// defaultLogger logs human-readable lines on a terminal and JSON otherwise.
func defaultLogger() (logr.Logger, func()) {
	var zc zap.Config
	if isTerminal(os.Stderr) {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	} else {
		zc = zap.NewProductionConfig()
	}
	level := zapcore.InfoLevel
	if Verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
