package log

import "fmt"

// consume is the consumer task: a single long-lived goroutine that blocks
// on the queue and performs all expensive work per entry. It is the sole
// owner of the file handle in steady state; rotation is serialized with
// appends because both run here. When the queue closes at End it drains the
// remaining entries, flushes and exits.
func (e *Engine) consume() {
	defer e.wg.Done()

	for entry := range e.queue.ch {
		e.processEntry(entry)
	}

	if e.sink != nil {
		if err := e.sink.Flush(); err != nil {
			e.diag.report("final flush", err)
		}
	}
}

// processEntry fans one entry out to the callback, console and file sinks.
// A file failure is diagnosed and drops only the persistence of this entry;
// console output and callback delivery are unaffected.
func (e *Engine) processEntry(entry Entry) {
	if cb := e.callback.Load(); cb != nil {
		e.invokeCallback(*cb, entry)
	}

	printLv, saveLv := e.levels()
	if entry.Level < printLv && entry.Level < saveLv {
		return
	}

	line := FormatEntry(entry)

	if entry.Level >= printLv {
		if _, err := e.console.Write(line); err != nil {
			e.diag.report("console write", err)
		}
	}

	if entry.Level >= saveLv && e.sink != nil {
		if err := e.sink.Append(line, entry.Level); err != nil {
			e.diag.report("file append", err)
			return
		}
		if e.sink.Lines() >= uint64(e.maxLogLines.Load()) {
			if err := e.sink.RotateKeepLatestPercent(e.cfg.RotatePercent); err != nil {
				e.diag.report("rotate", err)
				return
			}
			e.rotations.Add(1)
		}
	}
}

// invokeCallback shields the pipeline from a panicking callback. The
// failure is diagnosed and the entry is not redelivered.
func (e *Engine) invokeCallback(cb Callback, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			e.diag.report("callback", fmt.Errorf("panic: %v", r))
		}
	}()
	cb(entry)
}
