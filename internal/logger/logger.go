package logger

import (
	"fmt"
	"io"
	"os"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Logger wraps the cometbft key/value logger with a debug flag and the
// printf helpers used across the gateway.
type Logger struct {
	cmtlog.Logger
	debug bool
}

// New creates a logger writing to stderr
func New(debug bool) *Logger {
	return NewWithWriter(debug, os.Stderr)
}

// NewWithWriter creates a logger writing to w. Debug lines are dropped
// unless debug is set.
func NewWithWriter(debug bool, w io.Writer) *Logger {
	level := cmtlog.AllowInfo()
	if debug {
		level = cmtlog.AllowDebug()
	}
	return &Logger{
		Logger: cmtlog.NewFilter(cmtlog.NewTMLogger(cmtlog.NewSyncWriter(w)), level),
		debug:  debug,
	}
}

// Nop discards everything; used by tests.
func Nop() *Logger {
	return &Logger{Logger: cmtlog.NewNopLogger()}
}

// With returns a child logger carrying keyvals on every line.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), debug: l.debug}
}

// Debugging reports whether debug output is enabled
func (l *Logger) Debugging() bool {
	return l.debug
}

// Printf logs at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Info(fmt.Sprintf(format, v...))
}

// Debugf logs at debug level
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.Debug(fmt.Sprintf(format, v...))
}

// Fatalf always logs (fatal errors) and exits
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}
