// Package logger provides leveled logging and the audit trail for carebot.
// Warnings always reach stderr; debug and info messages only appear with
// --verbose. Audit events are written whenever an audit sink is set.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level is a log severity.
type Level int

// Log levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
)

var prefixes = map[Level]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
}

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose lowers the threshold to debug, or restores it to warn.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// Enabled reports whether messages at level are written.
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled(level)
}

func enabled(level Level) bool {
	return verbose || level >= LevelWarn
}

// SetOutput sets the log writer. Defaults to os.Stderr; stdout is never
// used because the MCP stdio transport owns it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(level Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if enabled(level) {
		fmt.Fprintf(output, prefixes[level]+format+"\n", args...)
	}
}

// Debug logs detail useful when tracing a single request.
func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

// Info logs normal progress.
func Info(format string, args ...any) { logf(LevelInfo, format, args...) }

// Warn logs a problem the user should see.
func Warn(format string, args ...any) { logf(LevelWarn, format, args...) }

// Section prints a section header in verbose mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
