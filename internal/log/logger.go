// SPDX-License-Identifier: MIT
//
// Package log is a small levelled logger over the standard library logger.
// The level is global and atomic so the worker goroutine can check it
// without locking. Components get a prefixed logger from For:
//
//	var logger = applog.For("Engine")
//	logger.Infof("started (%d bands)", n) // [INFO]  Engine: started (24 bands)
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var currentLevel atomic.Uint32

var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

// exit is swapped in tests.
var exit = os.Exit

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel returns the global logging level.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. The TUI points it at a file so log
// lines do not tear the alternate screen.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Enabled reports whether messages at level are currently emitted. Hot
// paths use it to skip building arguments.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, prefix, msg string) {
	if !Enabled(level) && level != LevelFatal {
		return
	}
	// Pad so messages line up after [INFO] and [WARN].
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	logger.Print("[" + level.String() + "]" + pad + prefix + msg)
	if level == LevelFatal {
		exit(1)
	}
}

// Logger prefixes every message with a component name.
type Logger struct {
	prefix string
}

// For returns a logger whose messages are prefixed with "component: ".
func For(component string) Logger {
	if component == "" {
		return Logger{}
	}
	return Logger{prefix: component + ": "}
}

func (l Logger) Debugf(format string, v ...any) {
	if Enabled(LevelDebug) {
		output(LevelDebug, l.prefix, fmt.Sprintf(format, v...))
	}
}

func (l Logger) Infof(format string, v ...any) {
	if Enabled(LevelInfo) {
		output(LevelInfo, l.prefix, fmt.Sprintf(format, v...))
	}
}

func (l Logger) Warnf(format string, v ...any) {
	if Enabled(LevelWarn) {
		output(LevelWarn, l.prefix, fmt.Sprintf(format, v...))
	}
}

func (l Logger) Errorf(format string, v ...any) {
	if Enabled(LevelError) {
		output(LevelError, l.prefix, fmt.Sprintf(format, v...))
	}
}

// Fatalf always logs and then exits the process.
func (l Logger) Fatalf(format string, v ...any) {
	output(LevelFatal, l.prefix, fmt.Sprintf(format, v...))
}

var std = Logger{}

// Debugf logs an unprefixed debug message.
func Debugf(format string, v ...any) { std.Debugf(format, v...) }

// Infof logs an unprefixed info message.
func Infof(format string, v ...any) { std.Infof(format, v...) }

// Warnf logs an unprefixed warning.
func Warnf(format string, v ...any) { std.Warnf(format, v...) }

// Errorf logs an unprefixed error.
func Errorf(format string, v ...any) { std.Errorf(format, v...) }

// Fatalf logs and exits.
func Fatalf(format string, v ...any) { std.Fatalf(format, v...) }
