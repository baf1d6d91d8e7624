package pipeline

import (
	"fmt"
	"io"
	"sync"
)

// Reporter prints the user-facing progress lines. Diagnostics go to the log
// package instead.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter writes to w; a nil w discards output.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w}
}

// TableCreated prints "Table created".
func (r *Reporter) TableCreated() { r.printf("Table created\n") }

// Inserted prints "Inserted: <n>".
func (r *Reporter) Inserted(n int64) { r.printf("Inserted: %d\n", n) }

// ZonesInserted prints "Inserted taxi zones: <n>".
func (r *Reporter) ZonesInserted(n int64) { r.printf("Inserted taxi zones: %d\n", n) }

func (r *Reporter) printf(format string, a ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, a...)
}
