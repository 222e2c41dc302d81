// Package log provides the minimal logging seam used throughout the
// module: callers format messages with Printf, and the host process
// decides where they go.
package log

import (
	"io"
	stdlog "log"
	"sync"
)

// Logger is the minimal logging interface the sender/receiver/daemon code
// depends on. *log.Logger from the standard library already implements
// it.
type Logger interface {
	Printf(format string, v ...interface{})
}

// New returns a Logger that writes to w with the standard library's
// default timestamp prefix.
func New(w io.Writer) Logger {
	return stdlog.New(w, "", stdlog.LstdFlags)
}

var (
	mu      sync.Mutex
	current Logger = New(io.Discard)
)

// SetLogger replaces the package-level default logger used by Printf.
// Callers that construct their own Transfer with an explicit Logger
// field do not need this; it only affects code that logs through the
// package-level Printf.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Printf logs via the package-level default logger.
func Printf(format string, v ...interface{}) {
	mu.Lock()
	l := current
	mu.Unlock()
	l.Printf(format, v...)
}
