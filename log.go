package lurk

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logMu  sync.RWMutex
	pkgLogger = zap.NewNop()
)

// SetLogger installs the logger used across the package. The default is a
// nop logger; the CLI installs a real one.
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger = l
}

func logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return pkgLogger
}
