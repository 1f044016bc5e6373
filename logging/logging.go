// Package logging is a thin layer over zap that routes log entries to a set of appenders.
package logging

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	globalMu     sync.RWMutex
	globalLogger = New("startup", DEBUG, NewStdoutAppender())
)

// ReplaceGlobal swaps the logger returned by Global. The cli installs its configured logger here
// once the config has been read.
func ReplaceGlobal(logger Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// Global returns the process wide logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// New returns a logger with UTC timestamps that sends entries at level and above to appenders.
func New(name string, level Level, appenders ...Appender) Logger {
	return newImpl(name, level, true, appenders)
}

// NewBlankLogger returns a Debug+ logger with no appenders; add them with AddAppender.
func NewBlankLogger(name string) Logger {
	return New(name, DEBUG)
}

// NewTestLogger returns a Debug+ logger that writes through tb.Log in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is NewTestLogger that also records every entry for assertions.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	return newImpl("", DEBUG, false, []Appender{NewTestAppender(tb), observerCore}), observedLogs
}

func newImpl(name string, level Level, inUTC bool, appenders []Appender) *impl {
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(level),
		inUTC:     inUTC,
		appenders: append([]Appender(nil), appenders...),
	}
}
