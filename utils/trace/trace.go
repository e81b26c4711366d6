// Package trace provides env-gated tracing targets, enabled through the
// GITWIRE_TRACE environment variable.
package trace

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
)

var (
	// logger is the logger to use for tracing.
	logger = newLogger()

	// current is the targets that are enabled for tracing.
	current atomic.Int32
)

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds|log.Lshortfile)
}

// Target is a tracing target.
type Target int32

const (
	// General traces general operations.
	General Target = 1 << iota

	// Packet traces pkt-lines as they are read and written.
	Packet
)

// SetTarget sets the tracing targets.
func SetTarget(target Target) {
	current.Store(int32(target))
}

// SetLogger sets the logger to use for tracing.
func SetLogger(l *log.Logger) {
	logger = l
}

// Printf writes a trace message for the given target.
func (t Target) Printf(format string, args ...interface{}) {
	if int32(t)&current.Load() != 0 {
		if err := logger.Output(2, fmt.Sprintf(format, args...)); err != nil {
			panic(err)
		}
	}
}

// Enabled returns true if the given target is enabled for tracing.
func (t Target) Enabled() bool {
	return int32(t)&current.Load() != 0
}

func init() {
	var target Target
	if val, ok := os.LookupEnv("GITWIRE_TRACE"); ok {
		if bools, err := strconv.ParseBool(val); err == nil && bools {
			target |= General
		}
	}
	if val, ok := os.LookupEnv("GITWIRE_TRACE_PACKET"); ok {
		if bools, err := strconv.ParseBool(val); err == nil && bools {
			target |= Packet
		}
	}
	SetTarget(target)
}
