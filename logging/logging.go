// Package logging contains the structured logging used by every localize component.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewLogger returns a logger writing entries at level and above to appenders in UTC. Without
// appenders it writes to stdout.
func NewLogger(name string, level Level, appenders ...Appender) Logger {
	const inUTC = true
	if len(appenders) == 0 {
		appenders = []Appender{NewStdoutAppender()}
	}
	return &impl{name, NewAtomicLevelAt(level), inUTC, appenders}
}

// NewTestLogger returns a new logger that outputs Debug+ logs through the test object in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	const inUTC = false
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	return &impl{"", NewAtomicLevelAt(DEBUG), inUTC, []Appender{NewTestAppender(tb), observerCore}}, observedLogs
}
