// Package logging contains the structured logger used across aislenav.
package logging

import (
	"context"
)

// Logger is the structured logging interface handed to every component. Messages carry
// alternating key/value pairs. The context variants also carry the pairs attached with WithFields,
// and log at debug whenever the context has debug mode enabled.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Infow(msg string, keysAndValues ...interface{})
	CInfow(ctx context.Context, msg string, keysAndValues ...interface{})

	Warnw(msg string, keysAndValues ...interface{})
	CWarnw(ctx context.Context, msg string, keysAndValues ...interface{})

	// Error logs its operands as the message, the way fmt.Sprint joins them.
	Error(args ...interface{})

	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return &impl{name: name, level: NewAtomicLevelAt(INFO), inUTC: true, appenders: []Appender{NewStdoutAppender()}}
}

// NewBlankLogger returns a new logger that outputs Debug+ logs in UTC, but without any
// pre-existing appenders/outputs.
func NewBlankLogger(name string) Logger {
	return &impl{name: name, level: NewAtomicLevelAt(DEBUG), inUTC: true}
}
