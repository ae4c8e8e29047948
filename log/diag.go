package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// diag is the engine's internal diagnostic channel. It is structurally
// separate from the log pipeline: a report is one direct write to a plain
// io.Writer, so an I/O failure inside the engine can never re-enter the
// queue and recurse. Write errors on the diagnostic writer itself are
// discarded; there is nowhere left to report them.
type diag struct {
	mu sync.Mutex
	w  io.Writer
}

func newDiag(w io.Writer) *diag {
	if w == nil {
		w = os.Stderr
	}
	return &diag{w: w}
}

// report emits one diagnostic line for an engine-internal failure.
func (d *diag) report(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "flashlog: %s: %v\n", op, err)
}
