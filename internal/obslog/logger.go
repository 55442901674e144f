// Package obslog provides the level-based logging used across the andytools
// runtime. All output goes to stderr so the library never pollutes a host
// process's stdout protocol.
package obslog

import (
	"io"
	"log"
	"os"
)

type logger struct {
	debugEnabled bool
	info         *log.Logger
	debug        *log.Logger
	warn         *log.Logger
	errorLog     *log.Logger
}

var global *logger

// Initialize sets up the package-level logger. Safe to call more than once;
// the latest call wins.
func Initialize(debugMode bool) {
	var output io.Writer = os.Stderr
	global = &logger{
		debugEnabled: debugMode,
		info:         log.New(output, "", log.LstdFlags),
		debug:        log.New(output, "", log.LstdFlags),
		warn:         log.New(output, "", log.LstdFlags),
		errorLog:     log.New(output, "", log.LstdFlags),
	}
}

func ensure() {
	if global == nil {
		Initialize(false)
	}
}

// Info logs informational messages. Always shown.
func Info(format string, args ...interface{}) {
	ensure()
	global.info.Printf(format, args...)
}

// Debug logs debug messages. Shown only when debug mode is enabled.
func Debug(format string, args ...interface{}) {
	ensure()
	if global.debugEnabled {
		global.debug.Printf("DEBUG: "+format, args...)
	}
}

// Warn logs warning messages. Always shown.
func Warn(format string, args ...interface{}) {
	ensure()
	global.warn.Printf("WARN: "+format, args...)
}

// Error logs error messages. Always shown.
func Error(format string, args ...interface{}) {
	ensure()
	global.errorLog.Printf("ERROR: "+format, args...)
}

// IsDebugEnabled reports whether debug logging is currently active.
func IsDebugEnabled() bool {
	ensure()
	return global.debugEnabled
}
