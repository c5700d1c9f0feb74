// Package monitoring holds the process-wide diagnostic loggers and the
// tracker's Prometheus metrics.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug turns per-fix tracing on or off.
func SetDebug(on bool) {
	debug.Store(on)
}

// Debugf logs through Logf only while debug tracing is on. Sampling decisions
// use it since they would otherwise log once per fix.
func Debugf(format string, v ...interface{}) {
	if debug.Load() {
		Logf("[debug] "+format, v...)
	}
}
