// Package logger provides the leveled logger used across hrsync.
// Messages are filtered by a process-wide level and written through the standard `log` package,
// so every component (ingestion, backup, HTTP transport, GORM, Fx) shares one output stream.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is a logging level. Smaller values are more verbose.
type LogLevel int32

const (
	// LevelDebug logs per-record decisions (rejections, coercions, SQL).
	LevelDebug LogLevel = iota
	// LevelInfo logs batch, export and restore summaries.
	LevelInfo
	// LevelWarn logs recoverable problems such as partially failed restores.
	LevelWarn
	// LevelError logs failed operations.
	LevelError
	// LevelFatal logs a message and terminates the process.
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel converts a level name (case-insensitive) into a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// SetLogLevel sets the global level from its name.
// An unknown name falls back to INFO and a warning is printed.
func SetLogLevel(level string) {
	l, err := ParseLevel(level)
	if err != nil {
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
	}
	current.Store(int32(l))
}

// GetLogLevel returns the current global level.
func GetLogLevel() LogLevel {
	return LogLevel(current.Load())
}

// Enabled reports whether messages at the given level are currently written.
func Enabled(level LogLevel) bool {
	return GetLogLevel() <= level
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func logf(level LogLevel, format string, v ...interface{}) {
	if Enabled(level) {
		log.Printf("["+level.String()+"] "+format, v...)
	}
}

// Debugf writes a DEBUG message.
func Debugf(format string, v ...interface{}) { logf(LevelDebug, format, v...) }

// Infof writes an INFO message.
func Infof(format string, v ...interface{}) { logf(LevelInfo, format, v...) }

// Warnf writes a WARN message.
func Warnf(format string, v ...interface{}) { logf(LevelWarn, format, v...) }

// Errorf writes an ERROR message.
func Errorf(format string, v ...interface{}) { logf(LevelError, format, v...) }

// Fatalf writes a FATAL message and exits with status 1 regardless of the configured level.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
