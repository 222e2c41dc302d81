// Package rsyncos holds the thin environment abstraction (standard
// streams, plus whatever else command-line parsing needs to know about
// the host process) that the rest of the module depends on instead of
// reaching for os.Stdin/os.Stdout/os.Stderr directly. This keeps
// rsyncopts and the sender/receiver driver testable without a real
// process environment.
package rsyncos

import (
	"fmt"
	"io"
)

// Std bundles the standard streams a Transfer needs: where to print
// listed/dry-run file names (Stdout), where to log progress and errors
// (Stderr), and where to read from if a feature ever needs interactive
// input (Stdin).
type Std struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Env extends Std with process-global knobs that command-line parsing
// consults (environment variables, in practice just what's needed to
// resolve defaults like RSYNC_RSH).
type Env struct {
	Std

	Getenv func(string) string

	// DontRestrict makes Restrict report false (e.g. because the calling
	// process is already confined by an outer call, or by an explicit
	// opt-out flag).
	DontRestrict bool
}

// Logf writes a formatted progress/diagnostic line to Stderr, trailing
// newline included.
func (e *Env) Logf(format string, args ...interface{}) {
	fmt.Fprintf(e.Stderr, format+"\n", args...)
}

// Restrict reports whether the caller should apply filesystem
// sandboxing before serving a connection.
func (e *Env) Restrict() bool {
	return !e.DontRestrict
}
