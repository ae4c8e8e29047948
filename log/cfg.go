package log

import (
	"io"
	"os"
	"time"
)

// Defaults mirroring first-run behavior of the engine.
const (
	// DefaultLogPath is where the append log lives when no path is given.
	DefaultLogPath = "logs/flashlog.log"

	// DefaultMaxLogLines bounds the log file before rotation triggers.
	DefaultMaxLogLines = 1000

	// DefaultRotatePercent is the keep-latest fraction used by automatic
	// rotation and by ClearLogKeepLatestPercent when unspecified.
	DefaultRotatePercent = 10

	// DefaultQueueMemoryBudget sizes the bounded queue; 64 slots worth of
	// fixed-size entries.
	DefaultQueueMemoryBudget = 64 * entrySize

	// DefaultFlushInterval is the periodic flush cadence for severities
	// below the flush threshold.
	DefaultFlushInterval = 500 * time.Millisecond
)

// Config holds the persisted engine thresholds. It is loaded once at Begin
// (or defaulted when the store is empty or corrupt), mutated only through
// the engine setters, and re-persisted after every mutation.
type Config struct {
	// PrintLevel is the minimum severity written to the console sink.
	PrintLevel Level

	// SaveLevel is the minimum severity persisted to the log file.
	SaveLevel Level

	// MaxLogLines is the line-count threshold that triggers rotation.
	MaxLogLines uint32
}

// DefaultConfig returns the hard-coded first-run configuration.
func DefaultConfig() Config {
	return Config{
		PrintLevel:  DebugLevel,
		SaveLevel:   InfoLevel,
		MaxLogLines: DefaultMaxLogLines,
	}
}

// Clamp saturates both levels into the valid range and floors MaxLogLines
// at one so rotation arithmetic stays sane.
func (c Config) Clamp() Config {
	c.PrintLevel = c.PrintLevel.Clamp()
	c.SaveLevel = c.SaveLevel.Clamp()
	if c.MaxLogLines == 0 {
		c.MaxLogLines = 1
	}
	return c
}

// ConfigStore persists Config across resets. The engine treats a Load error
// as "first run": defaults are applied and written back immediately so
// subsequent reads are stable. Save must be atomic from the engine's
// perspective; the store implementation owns that guarantee.
type ConfigStore interface {
	Load() (Config, error)
	Save(Config) error
}

// Callback is the optional externally supplied sink invoked with every
// entry that survives the early-exit check, regardless of thresholds.
// It runs on the consumer task (or inline on a producer under
// backpressure); a panic inside it is recovered and diagnosed but the
// callback is not retried.
type Callback func(Entry)

// Cfg configures an Engine instance. The zero value is usable: normalize
// fills every unset field with the defaults above.
type Cfg struct {
	// LogPath is the path of the append log on the flash filesystem.
	LogPath string

	// Store persists thresholds across resets. When nil the engine keeps
	// configuration in memory only and setters skip persistence.
	Store ConfigStore

	// Console receives formatted lines at or above the print level.
	// Defaults to os.Stdout.
	Console io.Writer

	// Diag receives engine-internal failure reports, never log entries.
	// Defaults to os.Stderr.
	Diag io.Writer

	// QueueMemoryBudget in bytes determines queue capacity
	// (budget / entry size, minimum one slot).
	QueueMemoryBudget int

	// FlushThreshold is the severity at or above which appends sync
	// immediately instead of waiting for the periodic flush.
	FlushThreshold Level

	// FlushInterval is the periodic flush cadence below the threshold.
	FlushInterval time.Duration

	// RotatePercent is the keep-latest percentage applied by automatic
	// rotation when the line count reaches MaxLogLines.
	RotatePercent int

	// CoreID reports the execution core of the calling site. Hosts with
	// pinned OS threads can supply a real implementation; the default
	// reports core 0.
	CoreID func() int

	// CallerSkip adds stack frames to skip when resolving the call site,
	// for wrapper layers around the engine.
	CallerSkip int
}

func (c *Cfg) normalize() {
	if c.LogPath == "" {
		c.LogPath = DefaultLogPath
	}
	if c.Console == nil {
		c.Console = os.Stdout
	}
	if c.Diag == nil {
		c.Diag = os.Stderr
	}
	if c.QueueMemoryBudget <= 0 {
		c.QueueMemoryBudget = DefaultQueueMemoryBudget
	}
	if c.FlushThreshold == 0 {
		c.FlushThreshold = ErrorLevel
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.RotatePercent <= 0 || c.RotatePercent > 100 {
		c.RotatePercent = DefaultRotatePercent
	}
	if c.CoreID == nil {
		c.CoreID = func() int { return 0 }
	}
	if c.CallerSkip < 0 {
		c.CallerSkip = 0
	}
}
