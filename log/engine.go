package log

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoFileSink is returned by file-backed operations while the engine runs
// in console-only mode (persistence unavailable since Begin).
var ErrNoFileSink = errors.New("file sink unavailable")

var (
	errAlreadyBegun = errors.New("engine already begun")
	errEnded        = errors.New("engine already ended")
)

// Engine is the asynchronous log-processing pipeline: call sites submit
// fixed-size entries through the level filter into a bounded queue, and a
// single consumer task performs all expensive work (formatting, console
// write, file persistence, callback delivery) off the caller's execution
// context.
//
// An Engine is an explicit instance with a Begin/End lifecycle; construct
// one per log file and inject it where logging is needed. All exported
// methods are safe for concurrent use, and no log call ever blocks its
// caller beyond the bounded backpressure stall or propagates an error.
type Engine struct {
	cfg     Cfg
	console io.Writer
	diag    *diag
	store   ConfigStore

	printLevel  atomic.Int32
	saveLevel   atomic.Int32
	maxLogLines atomic.Uint32

	counters Counters
	queue    *queue
	sink     *fileSink // nil in console-only mode
	callback atomic.Pointer[Callback]

	caller callerResolver
	start  time.Time // monotonic anchor for Entry.MonoMillis

	began     atomic.Bool
	ended     atomic.Bool
	accepting atomic.Bool
	rotations atomic.Uint64
	wg        sync.WaitGroup
}

// New constructs an Engine from cfg, filling unset fields with defaults.
// The engine performs no I/O until Begin; log calls made before Begin only
// increment counters.
func New(cfg Cfg) *Engine {
	cfg.normalize()

	e := &Engine{
		cfg:     cfg,
		console: cfg.Console,
		diag:    newDiag(cfg.Diag),
		store:   cfg.Store,
		queue:   newQueue(cfg.QueueMemoryBudget),
		caller:  callerResolver{skip: cfg.CallerSkip},
		start:   time.Now(),
	}
	e.applyConfig(DefaultConfig())

	return e
}

// Begin brings the pipeline up: thresholds are loaded from the config store
// (defaults written back on first run or corruption), the file sink opens
// the append log and seeds the line counter, and the consumer task starts.
//
// A filesystem failure here is reported once through the diagnostic channel
// and leaves the engine in console-only mode; Begin still succeeds so the
// device keeps its console and callback paths.
func (e *Engine) Begin() error {
	if e.ended.Load() {
		return errEnded
	}
	if !e.began.CompareAndSwap(false, true) {
		return errAlreadyBegun
	}

	if e.store != nil {
		cfg, err := e.store.Load()
		if err != nil {
			e.diag.report("config load", err)
			cfg = DefaultConfig()
			if saveErr := e.store.Save(cfg); saveErr != nil {
				e.diag.report("config save", saveErr)
			}
		}
		e.applyConfig(cfg)
	}

	sink, err := newFileSink(e.cfg.LogPath, e.cfg.FlushThreshold, e.cfg.FlushInterval)
	if err != nil {
		e.diag.report("file sink init, continuing console-only", err)
	} else {
		e.sink = sink
	}

	e.wg.Add(1)
	go e.consume()
	e.accepting.Store(true)

	return nil
}

// End tears the pipeline down: new submissions stop entering the queue
// (they still count), the queue is closed so the consumer drains whatever
// remains and exits, the task is joined, pending appends are flushed and
// the file handle is closed. End is idempotent.
func (e *Engine) End() error {
	if !e.began.CompareAndSwap(true, false) {
		return nil
	}
	e.ended.Store(true)
	e.accepting.Store(false)

	e.queue.close()
	e.wg.Wait()

	if e.sink != nil {
		return e.sink.Close()
	}
	return nil
}

// Verbose logs at VERBOSE severity with printf-style formatting.
func (e *Engine) Verbose(format string, args ...any) { e.submit(VerboseLevel, format, args) }

// Debug logs at DEBUG severity with printf-style formatting.
func (e *Engine) Debug(format string, args ...any) { e.submit(DebugLevel, format, args) }

// Info logs at INFO severity with printf-style formatting.
func (e *Engine) Info(format string, args ...any) { e.submit(InfoLevel, format, args) }

// Warning logs at WARNING severity with printf-style formatting.
func (e *Engine) Warning(format string, args ...any) { e.submit(WarningLevel, format, args) }

// Error logs at ERROR severity with printf-style formatting.
func (e *Engine) Error(format string, args ...any) { e.submit(ErrorLevel, format, args) }

// Fatal logs at FATAL severity with printf-style formatting. It does not
// terminate the process; the engine never crashes its caller.
func (e *Engine) Fatal(format string, args ...any) { e.submit(FatalLevel, format, args) }

// submit is the common entry point behind the severity methods. The counter
// increment is unconditional and happens first; the early-exit rule then
// keeps filtered low-severity spam at the cost of that one atomic add.
func (e *Engine) submit(level Level, format string, args []any) {
	level = level.Clamp()
	e.counters.Inc(level)

	cb := e.callback.Load()
	printLv, saveLv := e.levels()
	if cb == nil && level < printLv && level < saveLv {
		return
	}
	if !e.accepting.Load() {
		return
	}

	e.enqueue(e.newEntry(level, format, args))
}

// newEntry snapshots one log event: timestamps, origin core, resolved call
// site and the formatted message, every string truncated to its fixed cap.
func (e *Engine) newEntry(level Level, format string, args []any) Entry {
	now := time.Now()
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	c := e.caller.resolve()

	return Entry{
		UnixMillis: uint64(now.UnixMilli()),
		MonoMillis: uint64(now.Sub(e.start) / time.Millisecond),
		Level:      level,
		CoreID:     e.cfg.CoreID(),
		File:       truncate(c.file, MaxSourceLength),
		Function:   truncate(c.function, MaxSourceLength),
		Message:    truncate(msg, MaxMessageLength),
	}
}

// enqueue applies the backpressure policy: when the queue is full the
// producer synchronously pops and fully processes one entry inline (a
// bounded stall, not a drop), then retries the push. Only if the retry
// still fails is the new entry discarded and counted.
func (e *Engine) enqueue(entry Entry) {
	if e.queue.tryPush(entry) {
		return
	}

	if victim, ok := e.queue.tryPop(); ok {
		e.processEntry(victim)
	}
	if !e.queue.tryPush(entry) {
		e.counters.IncDropped()
	}
}

// levels returns the current thresholds.
func (e *Engine) levels() (Level, Level) {
	return Level(e.printLevel.Load()), Level(e.saveLevel.Load())
}

// applyConfig installs thresholds in memory without persisting. Used at
// load time and by external reload paths (e.g. a config file watcher).
func (e *Engine) applyConfig(cfg Config) {
	cfg = cfg.Clamp()
	e.printLevel.Store(int32(cfg.PrintLevel))
	e.saveLevel.Store(int32(cfg.SaveLevel))
	e.maxLogLines.Store(cfg.MaxLogLines)
}

// ApplyConfig installs thresholds without re-persisting them. Intended for
// reload-from-store paths where the store already holds the new values.
func (e *Engine) ApplyConfig(cfg Config) {
	e.applyConfig(cfg)
}

// snapshotConfig captures the current thresholds for persistence.
func (e *Engine) snapshotConfig() Config {
	printLv, saveLv := e.levels()
	return Config{
		PrintLevel:  printLv,
		SaveLevel:   saveLv,
		MaxLogLines: e.maxLogLines.Load(),
	}
}

// persist writes the current thresholds through the config store. Failures
// are diagnosed, never propagated: setters cannot fail their caller.
func (e *Engine) persist() {
	if e.store == nil {
		return
	}
	if err := e.store.Save(e.snapshotConfig()); err != nil {
		e.diag.report("config save", err)
	}
}

// SetPrintLevel sets the console threshold and persists the configuration.
func (e *Engine) SetPrintLevel(level Level) {
	e.printLevel.Store(int32(level.Clamp()))
	e.persist()
}

// SetSaveLevel sets the persistence threshold and persists the configuration.
func (e *Engine) SetSaveLevel(level Level) {
	e.saveLevel.Store(int32(level.Clamp()))
	e.persist()
}

// PrintLevel returns the current console threshold.
func (e *Engine) PrintLevel() Level {
	return Level(e.printLevel.Load())
}

// SaveLevel returns the current persistence threshold.
func (e *Engine) SaveLevel() Level {
	return Level(e.saveLevel.Load())
}

// SetDefaultConfig restores the hard-coded defaults and persists them.
func (e *Engine) SetDefaultConfig() {
	e.applyConfig(DefaultConfig())
	e.persist()
}

// SetMaxLogLines sets the rotation threshold and persists the configuration.
func (e *Engine) SetMaxLogLines(maxLines uint32) {
	if maxLines == 0 {
		maxLines = 1
	}
	e.maxLogLines.Store(maxLines)
	e.persist()
}

// MaxLogLines returns the current rotation threshold.
func (e *Engine) MaxLogLines() uint32 {
	return e.maxLogLines.Load()
}

// LogLines returns the number of terminated records currently in the log
// file, zero in console-only mode.
func (e *Engine) LogLines() uint64 {
	if e.sink == nil {
		return 0
	}
	return e.sink.Lines()
}

// ClearLog truncates the log file unconditionally.
func (e *Engine) ClearLog() error {
	if e.sink == nil {
		return ErrNoFileSink
	}
	return e.sink.Clear()
}

// ClearLogKeepLatestPercent discards the oldest lines, keeping the latest
// percent (clamped to [0,100]) of the file in original order.
func (e *Engine) ClearLogKeepLatestPercent(percent int) error {
	if e.sink == nil {
		return ErrNoFileSink
	}
	if err := e.sink.RotateKeepLatestPercent(percent); err != nil {
		return err
	}
	e.rotations.Add(1)
	return nil
}

// Dump streams the log file's exact byte content to w.
func (e *Engine) Dump(w io.Writer) error {
	if e.sink == nil {
		return ErrNoFileSink
	}
	return e.sink.Dump(w)
}

// SetCallback registers the external sink invoked with every entry that
// survives the early-exit check, regardless of thresholds.
func (e *Engine) SetCallback(cb Callback) {
	if cb == nil {
		e.callback.Store(nil)
		return
	}
	e.callback.Store(&cb)
}

// RemoveCallback unregisters the external sink.
func (e *Engine) RemoveCallback() {
	e.callback.Store(nil)
}

// Count returns the number of submissions at the given severity.
func (e *Engine) Count(level Level) uint64 {
	return e.counters.Count(level)
}

// TotalCount returns the total number of log calls since the last reset.
func (e *Engine) TotalCount() uint64 {
	return e.counters.Total()
}

// DroppedCount returns the number of entries discarded under backpressure.
func (e *Engine) DroppedCount() uint64 {
	return e.counters.Dropped()
}

// ResetCounters zeroes all per-severity counters and the dropped count.
func (e *Engine) ResetCounters() {
	e.counters.Reset()
}

// QueueCapacity returns the fixed slot count of the bounded queue.
func (e *Engine) QueueCapacity() int {
	return e.queue.capacity()
}

// QueueSpacesAvailable returns the number of free queue slots.
func (e *Engine) QueueSpacesAvailable() int {
	return e.queue.spacesAvailable()
}

// QueueMessagesWaiting returns the number of entries awaiting the consumer.
func (e *Engine) QueueMessagesWaiting() int {
	return e.queue.messagesWaiting()
}

// Rotations returns how many automatic or explicit keep-latest rotations
// have completed since Begin.
func (e *Engine) Rotations() uint64 {
	return e.rotations.Load()
}
