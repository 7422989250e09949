// Package applog provides the proxy's internal diagnostic logger, distinct
// from internal/eventlog's honeypot event stream. It exists so that
// handshake failures, backend connect errors, and other signals with no
// user-visible effect are recorded somewhere other than stderr prints.
package applog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger = zap.NewNop().Sugar()
)

// Init installs the process-wide diagnostic logger. Call once at startup;
// safe to call again in tests to swap in a test logger.
func Init(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

// L returns the current diagnostic logger's sugared form, used for
// key/value structured fields (Warnw/Errorw/Infow) throughout the proxy.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// NewProduction builds the default JSON-line diagnostic logger.
func NewProduction() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	return cfg.Build()
}
