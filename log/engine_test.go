package log

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe console stand-in; the consumer task writes
// to it while the test goroutine reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// memStore is an in-memory ConfigStore for lifecycle tests.
type memStore struct {
	mu      sync.Mutex
	cfg     Config
	hasCfg  bool
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load() (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return Config{}, m.loadErr
	}
	if !m.hasCfg {
		return Config{}, os.ErrNotExist
	}
	return m.cfg, nil
}

func (m *memStore) Save(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = cfg
	m.hasCfg = true
	m.saves++
	return nil
}

func (m *memStore) snapshot() (Config, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.saves
}

func newTestEngine(t *testing.T, mutate func(*Cfg)) (*Engine, *syncBuffer) {
	t.Helper()
	console := &syncBuffer{}
	cfg := Cfg{
		LogPath: filepath.Join(t.TempDir(), "flashlog.log"),
		Console: console,
		Diag:    io.Discard,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(cfg)
	require.NoError(t, e.Begin())
	t.Cleanup(func() { e.End() })
	return e, console
}

func TestCountersCountEverySubmission(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	// Thresholds filter output, never accounting.
	e.SetPrintLevel(FatalLevel)
	e.SetSaveLevel(FatalLevel)

	e.Verbose("v")
	e.Debug("d")
	e.Info("i")
	e.Warning("w")
	e.Error("e")
	e.Fatal("f")
	e.Info("again")

	require.NoError(t, e.End())

	assert.Equal(t, uint64(7), e.TotalCount())
	assert.Equal(t, uint64(2), e.Count(InfoLevel))
	assert.Equal(t, uint64(1), e.Count(FatalLevel))
	assert.Equal(t, uint64(0), e.DroppedCount())
}

func TestResetCountersStartsFresh(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	e.Info("one")
	e.Error("two")
	e.ResetCounters()
	assert.Equal(t, uint64(0), e.TotalCount())

	e.Warning("three")
	assert.Equal(t, uint64(1), e.TotalCount())
	assert.Equal(t, uint64(1), e.Count(WarningLevel))
}

func TestEarlyExitSkipsQueue(t *testing.T) {
	e, console := newTestEngine(t, nil)

	e.SetPrintLevel(ErrorLevel)
	e.SetSaveLevel(FatalLevel)

	// Below both thresholds with no callback: counted, never enqueued.
	e.Debug("invisible")
	assert.Equal(t, uint64(1), e.TotalCount())
	assert.Equal(t, 0, e.QueueMessagesWaiting())

	require.NoError(t, e.End())
	assert.Empty(t, console.String())
	assert.Equal(t, uint64(0), e.LogLines())
}

func TestThresholdRouting(t *testing.T) {
	e, console := newTestEngine(t, nil)

	e.SetPrintLevel(ErrorLevel)
	e.SetSaveLevel(FatalLevel)

	e.Verbose("v")
	e.Debug("d")
	e.Info("i")
	e.Warning("w")
	e.Error("e")
	e.Fatal("f")

	require.NoError(t, e.End())

	out := console.String()
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, "[ERROR  ]")
	assert.Contains(t, out, "[FATAL  ]")
	assert.NotContains(t, out, "[WARNING]")

	assert.Equal(t, uint64(1), e.LogLines())
	data, err := os.ReadFile(e.cfg.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[FATAL  ]")
	assert.NotContains(t, string(data), "[ERROR  ]")
}

func TestCallbackSeesEveryEntry(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) { c.Console = io.Discard })

	// Even fully filtered entries reach the callback.
	e.SetPrintLevel(FatalLevel)
	e.SetSaveLevel(FatalLevel)

	var mu sync.Mutex
	var got []Level
	e.SetCallback(func(entry Entry) {
		mu.Lock()
		got = append(got, entry.Level)
		mu.Unlock()
	})

	e.Verbose("v")
	e.Debug("d")
	e.Info("i")
	e.Warning("w")
	e.Error("e")
	e.Fatal("f")

	require.NoError(t, e.End())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Level{VerboseLevel, DebugLevel, InfoLevel, WarningLevel, ErrorLevel, FatalLevel}, got)
}

func TestRemoveCallbackRestoresEarlyExit(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) { c.Console = io.Discard })

	e.SetPrintLevel(FatalLevel)
	e.SetSaveLevel(FatalLevel)

	var calls atomic.Uint64
	seen := make(chan struct{}, 1)
	e.SetCallback(func(Entry) {
		calls.Add(1)
		select {
		case seen <- struct{}{}:
		default:
		}
	})
	e.Debug("seen")
	<-seen
	e.RemoveCallback()
	e.Debug("unseen")

	require.NoError(t, e.End())
	assert.Equal(t, uint64(1), calls.Load())
	assert.Equal(t, uint64(2), e.TotalCount())
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	diagBuf := &syncBuffer{}
	e, console := newTestEngine(t, func(c *Cfg) { c.Diag = diagBuf })

	e.SetCallback(func(Entry) { panic("sink exploded") })

	e.Info("first")
	e.Info("second")
	e.Info("third")

	require.NoError(t, e.End())

	// The pipeline survives and keeps printing.
	assert.Equal(t, 3, strings.Count(console.String(), "\n"))
	assert.Contains(t, diagBuf.String(), "callback")
	assert.Contains(t, diagBuf.String(), "sink exploded")
}

func TestAutomaticRotation(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) {
		c.Console = io.Discard
		c.RotatePercent = 10
	})

	e.SetMaxLogLines(5)
	for i := 0; i < 6; i++ {
		e.Error("entry %d", i)
	}
	require.NoError(t, e.End())

	// The fifth append reaches the threshold; keep=floor(5*10/100)=0, so
	// only the sixth entry survives.
	assert.Equal(t, uint64(1), e.Rotations())
	assert.Equal(t, uint64(1), e.LogLines())

	data, err := os.ReadFile(e.cfg.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "entry 5")
	assert.NotContains(t, string(data), "entry 4")
}

func TestExplicitRotationAndClear(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) { c.Console = io.Discard })

	for i := 0; i < 10; i++ {
		e.Error("entry %d", i)
	}
	require.NoError(t, e.End())
	require.Equal(t, uint64(10), e.LogLines())

	require.NoError(t, e.ClearLogKeepLatestPercent(50))
	assert.Equal(t, uint64(5), e.LogLines())
	assert.Equal(t, uint64(1), e.Rotations())

	require.NoError(t, e.ClearLog())
	assert.Equal(t, uint64(0), e.LogLines())
}

func TestDumpMatchesFileBytes(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) { c.Console = io.Discard })

	e.Info("alpha")
	e.Warning("beta")
	e.Error("gamma")
	require.NoError(t, e.End())

	var buf bytes.Buffer
	require.NoError(t, e.Dump(&buf))

	data, err := os.ReadFile(e.cfg.LogPath)
	require.NoError(t, err)
	assert.Equal(t, data, buf.Bytes())
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestBackpressureProcessesInline(t *testing.T) {
	console := &syncBuffer{}
	e := New(Cfg{
		LogPath:           filepath.Join(t.TempDir(), "flashlog.log"),
		Console:           console,
		Diag:              io.Discard,
		QueueMemoryBudget: entrySize, // one slot
	})
	require.Equal(t, 1, e.QueueCapacity())

	// Accept submissions without starting the consumer so the queue stays
	// full and every push after the first exercises the inline path.
	e.accepting.Store(true)

	e.Info("msg-one")
	e.Info("msg-two")
	e.Info("msg-three")

	out := console.String()
	assert.Contains(t, out, "msg-one")
	assert.Contains(t, out, "msg-two")
	assert.NotContains(t, out, "msg-three")

	assert.Equal(t, uint64(0), e.DroppedCount())
	assert.Equal(t, 1, e.QueueMessagesWaiting())
	assert.Equal(t, uint64(3), e.TotalCount())
}

func TestStressAccountingIdentity(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) {
		c.Console = io.Discard
		c.QueueMemoryBudget = 2 * entrySize
	})

	// Fully filtered thresholds keep the test out of file I/O; the callback
	// alone forces every entry through the queue.
	e.SetPrintLevel(FatalLevel)
	e.SetSaveLevel(FatalLevel)

	var processed atomic.Uint64
	e.SetCallback(func(Entry) { processed.Add(1) })

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				e.Info("producer %d entry %d", p, i)
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, e.End())

	const total = producers * perProducer
	assert.Equal(t, uint64(total), e.TotalCount())

	// Every submission is either processed exactly once or counted dropped.
	assert.Equal(t, uint64(total), processed.Load()+e.DroppedCount())
}

func TestLifecycle(t *testing.T) {
	e := New(Cfg{
		LogPath: filepath.Join(t.TempDir(), "flashlog.log"),
		Console: io.Discard,
		Diag:    io.Discard,
	})

	// Before Begin: counted, not queued.
	e.Info("too early")
	assert.Equal(t, uint64(1), e.TotalCount())
	assert.Equal(t, 0, e.QueueMessagesWaiting())

	require.NoError(t, e.Begin())
	assert.Error(t, e.Begin())

	require.NoError(t, e.End())
	require.NoError(t, e.End())

	// After End: counted, not queued.
	e.Info("too late")
	assert.Equal(t, uint64(2), e.TotalCount())

	assert.Error(t, e.Begin())
}

func TestConsoleOnlyFallback(t *testing.T) {
	diagBuf := &syncBuffer{}
	console := &syncBuffer{}

	// A directory at the log path makes the sink unopenable.
	e := New(Cfg{
		LogPath: t.TempDir(),
		Console: console,
		Diag:    diagBuf,
	})
	require.NoError(t, e.Begin())

	e.Info("still alive")
	require.NoError(t, e.End())

	assert.Contains(t, diagBuf.String(), "file sink init")
	assert.Contains(t, console.String(), "still alive")

	assert.Equal(t, uint64(0), e.LogLines())
	assert.ErrorIs(t, e.ClearLog(), ErrNoFileSink)
	assert.ErrorIs(t, e.ClearLogKeepLatestPercent(50), ErrNoFileSink)
	assert.ErrorIs(t, e.Dump(io.Discard), ErrNoFileSink)
}

func TestConfigStoreLoadAndPersist(t *testing.T) {
	store := &memStore{
		cfg:    Config{PrintLevel: WarningLevel, SaveLevel: ErrorLevel, MaxLogLines: 10},
		hasCfg: true,
	}
	e, _ := newTestEngine(t, func(c *Cfg) {
		c.Console = io.Discard
		c.Store = store
	})

	assert.Equal(t, WarningLevel, e.PrintLevel())
	assert.Equal(t, ErrorLevel, e.SaveLevel())
	assert.Equal(t, uint32(10), e.MaxLogLines())

	e.SetPrintLevel(ErrorLevel)
	cfg, saves := store.snapshot()
	assert.Equal(t, ErrorLevel, cfg.PrintLevel)
	assert.Equal(t, 1, saves)

	e.SetMaxLogLines(42)
	cfg, saves = store.snapshot()
	assert.Equal(t, uint32(42), cfg.MaxLogLines)
	assert.Equal(t, 2, saves)
}

func TestConfigStoreLoadFailureWritesDefaults(t *testing.T) {
	diagBuf := &syncBuffer{}
	store := &memStore{loadErr: errors.New("flash corrupt")}

	e, _ := newTestEngine(t, func(c *Cfg) {
		c.Console = io.Discard
		c.Diag = diagBuf
		c.Store = store
	})
	store.mu.Lock()
	store.loadErr = nil
	store.mu.Unlock()

	assert.Equal(t, DebugLevel, e.PrintLevel())
	assert.Equal(t, InfoLevel, e.SaveLevel())
	assert.Equal(t, uint32(DefaultMaxLogLines), e.MaxLogLines())

	cfg, _ := store.snapshot()
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Contains(t, diagBuf.String(), "config load")
}

func TestSetDefaultConfig(t *testing.T) {
	store := &memStore{}
	e, _ := newTestEngine(t, func(c *Cfg) {
		c.Console = io.Discard
		c.Store = store
	})

	e.SetPrintLevel(FatalLevel)
	e.SetSaveLevel(FatalLevel)
	e.SetMaxLogLines(7)

	e.SetDefaultConfig()
	assert.Equal(t, DebugLevel, e.PrintLevel())
	assert.Equal(t, InfoLevel, e.SaveLevel())
	assert.Equal(t, uint32(DefaultMaxLogLines), e.MaxLogLines())

	cfg, _ := store.snapshot()
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLevelSettersClamp(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	e.SetPrintLevel(Level(99))
	assert.Equal(t, FatalLevel, e.PrintLevel())

	e.SetSaveLevel(Level(-7))
	assert.Equal(t, VerboseLevel, e.SaveLevel())
}

func TestCallerCapture(t *testing.T) {
	e, _ := newTestEngine(t, func(c *Cfg) { c.Console = io.Discard })

	e.SetPrintLevel(FatalLevel)
	e.SetSaveLevel(FatalLevel)

	ch := make(chan Entry, 1)
	e.SetCallback(func(entry Entry) {
		select {
		case ch <- entry:
		default:
		}
	})

	e.Info("where am I")
	require.NoError(t, e.End())

	select {
	case entry := <-ch:
		assert.Equal(t, "TestCallerCapture", entry.Function)
		assert.Equal(t, "log/engine_test.go", entry.File)
	default:
		t.Fatal("callback never delivered the entry")
	}
}

func TestMessageFormattingAndTruncation(t *testing.T) {
	e, console := newTestEngine(t, nil)

	e.Info("answer is %d", 42)
	e.Info(strings.Repeat("z", MaxMessageLength+50))
	require.NoError(t, e.End())

	out := console.String()
	assert.Contains(t, out, "answer is 42")
	assert.Contains(t, out, strings.Repeat("z", MaxMessageLength))
	assert.NotContains(t, out, strings.Repeat("z", MaxMessageLength+1))
}
