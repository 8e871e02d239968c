package io

import (
	"fmt"
	"os"
)

// Terminator reports fatal runtime conditions. A fatal condition prints a
// diagnostic naming the failed operation and terminates the process;
// continuing would operate on undefined state. Tests may install a handler
// to intercept the abort.
type Terminator struct {
	sourceFile string
	sourceLine int
	// Handler, when non-nil, receives the diagnostic instead of the
	// process exiting. The default output unit is flushed either way.
	Handler func(msg string)
}

// NewTerminator records the source location used in diagnostics.
func NewTerminator(sourceFile string, sourceLine int) Terminator {
	return Terminator{sourceFile: sourceFile, sourceLine: sourceLine}
}

// SetLocation updates the source location attributed to later crashes.
func (t *Terminator) SetLocation(sourceFile string, sourceLine int) {
	t.sourceFile = sourceFile
	t.sourceLine = sourceLine
}

// Crash terminates the process with a formatted diagnostic.
func (t *Terminator) Crash(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	where := ""
	if t.sourceFile != "" {
		where = fmt.Sprintf(" (%s:%d)", t.sourceFile, t.sourceLine)
	}
	FlushOutputOnCrash()
	if t.Handler != nil {
		t.Handler(msg)
		return
	}
	fmt.Fprintf(os.Stderr, "\nfatal f18 I/O runtime error%s: %s\n", where, msg)
	os.Exit(1)
}
