package log

import "sync/atomic"

// Counters tracks how many entries were submitted per severity plus how many
// were dropped under backpressure. Severity counters are incremented for
// every log call, before any filtering, so they never lie about call volume.
// All operations are lock-free and safe from any goroutine.
type Counters struct {
	bySeverity [numLevels]atomic.Uint64
	dropped    atomic.Uint64
}

// Inc increments the counter for the given (already clamped) severity.
func (c *Counters) Inc(level Level) {
	c.bySeverity[level].Add(1)
}

// Count returns the number of submissions at the given severity.
// Out-of-range levels read as zero rather than panicking.
func (c *Counters) Count(level Level) uint64 {
	if level < VerboseLevel || level > FatalLevel {
		return 0
	}
	return c.bySeverity[level].Load()
}

// Total returns the sum of all per-severity counters. It equals the number
// of log calls made since the last reset, regardless of filtering outcome.
func (c *Counters) Total() uint64 {
	var total uint64
	for i := range c.bySeverity {
		total += c.bySeverity[i].Load()
	}
	return total
}

// IncDropped records one entry discarded because the queue stayed full even
// after the backpressure path made room.
func (c *Counters) IncDropped() {
	c.dropped.Add(1)
}

// Dropped returns the number of entries discarded under backpressure.
func (c *Counters) Dropped() uint64 {
	return c.dropped.Load()
}

// Reset zeroes every counter, including the dropped count.
func (c *Counters) Reset() {
	for i := range c.bySeverity {
		c.bySeverity[i].Store(0)
	}
	c.dropped.Store(0)
}
