package log

import "sync"

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// SetDefaultLogger installs the process-wide logger. Commands call this
// once after parsing flags so library code logs at the requested level.
func SetDefaultLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// DefaultLogger returns the process-wide logger, creating one with the
// standard defaults on first use.
func DefaultLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	logger = Default()
	SetDefaultLogger(logger)
	return logger
}
