// Package logger builds the zap logger shared by all components.
package logger

import (
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelFor maps a -v count to a zap level: 0 warn, 1 info, 2+ debug.
func LevelFor(verbose int) zapcore.Level {
	switch {
	case verbose >= 2:
		return zapcore.DebugLevel
	case verbose == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// VerbosityFromEnv raises verbose to the level requested by ZINV_DEBUG
// ("1", "2" or "true").
func VerbosityFromEnv(verbose int) int {
	v := os.Getenv("ZINV_DEBUG")
	if v == "" {
		return verbose
	}
	if level, err := strconv.Atoi(v); err == nil {
		return max(level, verbose)
	}
	if v == "true" {
		return max(2, verbose)
	}
	return verbose
}

// New returns a console logger writing to w at the level implied by verbose.
func New(w io.Writer, verbose int) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	if verbose < 2 {
		encCfg.CallerKey = ""
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(LevelFor(verbose)),
	)
	return zap.New(core).Named("zinv")
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
