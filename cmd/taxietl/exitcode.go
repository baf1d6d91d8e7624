package main

import (
	"errors"

	"taxietl/internal/datasource"
	"taxietl/internal/storage"
)

// Process exit codes.
const (
	exitOK      = 0
	exitGeneral = 1
	exitUsage   = 2 // bad flags, arguments or configuration
	exitSource  = 3 // source file unreachable or unreadable
	exitSink    = 4 // database unreachable or rejected a write
)

// errUsage marks command-line and configuration mistakes.
var errUsage = errors.New("invalid usage")

// exitCodeForError maps a command error onto a process exit code. A run that
// failed on both sides reports the source first.
func exitCodeForError(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, datasource.ErrSourceUnavailable):
		return exitSource
	case errors.Is(err, storage.ErrSinkUnavailable):
		return exitSink
	default:
		return exitGeneral
	}
}
