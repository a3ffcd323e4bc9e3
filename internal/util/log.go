// Package util carries the small ambient helpers shared by the command
// line tool: leveled stderr logging and terminal detection.
package util

import (
	"fmt"
	"os"
	"time"
)

// LogLevel is the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLogLevel = LevelInfo
	useColors       = true
)

var levelStyle = map[LogLevel]struct {
	tag   string
	color string
}{
	LevelDebug: {"[DEBUG]", "\033[90m"},
	LevelInfo:  {"[INFO] ", "\033[36m"},
	LevelWarn:  {"[WARN] ", "\033[33m"},
	LevelError: {"[ERROR]", "\033[31m"},
}

// SetLogLevel sets the minimum level that will be emitted.
func SetLogLevel(level LogLevel) { currentLogLevel = level }

// SetVerbose lowers the level to debug when verbose is true.
func SetVerbose(verbose bool) {
	if verbose {
		currentLogLevel = LevelDebug
	}
}

// SetQuiet raises the level to errors-only when quiet is true.
func SetQuiet(quiet bool) {
	if quiet {
		currentLogLevel = LevelError
	}
}

// IsVerbose reports whether debug messages are emitted.
func IsVerbose() bool { return currentLogLevel <= LevelDebug }

// IsQuiet reports whether only errors are emitted.
func IsQuiet() bool { return currentLogLevel >= LevelError }

// SetColors enables or disables ANSI colors on the timestamp.
func SetColors(enabled bool) { useColors = enabled }

func emit(level LogLevel, tagOverride string, format string, args ...interface{}) {
	if currentLogLevel > level {
		return
	}
	style := levelStyle[level]
	tag := style.tag
	if tagOverride != "" {
		tag = tagOverride
	}
	stamp := time.Now().Format("15:04:05")
	if useColors {
		stamp = style.color + stamp + "\033[0m"
	}
	fmt.Fprintf(os.Stderr, "%s %s %s\n", stamp, tag, fmt.Sprintf(format, args...))
}

// DebugLog logs a debug message.
func DebugLog(format string, args ...interface{}) {
	emit(LevelDebug, "", format, args...)
}

// InfoLog logs an informational message.
func InfoLog(format string, args ...interface{}) {
	emit(LevelInfo, "", format, args...)
}

// WarnLog logs a warning.
func WarnLog(format string, args ...interface{}) {
	emit(LevelWarn, "", format, args...)
}

// ErrorLog logs an error.
func ErrorLog(format string, args ...interface{}) {
	emit(LevelError, "", format, args...)
}

// SuccessLog logs a success message, suppressed in quiet mode.
func SuccessLog(format string, args ...interface{}) {
	emit(LevelInfo, "[OK]   ", format, args...)
}
