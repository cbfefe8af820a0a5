// Package logx wraps zap the way the daemon's own CLI entrypoint does:
// a production config by default, debug level under --verbose, synced on
// shutdown.
package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap.Logger, switched to debug level when
// verbose is true.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests and for
// callers that haven't wired a real one yet.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Sync flushes a logger's buffers, swallowing the common "sync
// /dev/stderr: invalid argument" noise zap produces on some terminals.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	_ = logger.Sync()
}
