package log

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// fileMode tags the single file handle with how it is currently open.
type fileMode int

const (
	modeClosed fileMode = iota
	modeAppend
	modeRead
	modeWrite // truncating write
)

// fileSink owns the one open handle to the log file. The consumer task is
// its primary user; the mutex exists because the producer-side backpressure
// path processes one entry inline and may append concurrently.
//
// The handle is reopened only when the requested mode differs from the
// current one, keeping the hot append path free of open/close churn.
type fileSink struct {
	mu   sync.Mutex
	path string
	fd   *os.File
	mode fileMode

	// lines mirrors the number of newline-terminated records in the file.
	// Atomic so observability getters never take the sink lock.
	lines atomic.Uint64

	flushThreshold Level
	flushInterval  time.Duration
	lastFlush      time.Time
}

// newFileSink opens the log file in append mode, creating parent directories
// as needed, and seeds the line counter with one read pass over the file.
func newFileSink(path string, flushThreshold Level, flushInterval time.Duration) (*fileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, defaultDirMode); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	s := &fileSink{
		path:           path,
		flushThreshold: flushThreshold,
		flushInterval:  flushInterval,
		lastFlush:      time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMode(modeAppend); err != nil {
		return nil, err
	}

	n, err := s.countLines()
	if err != nil {
		s.closeLocked()
		return nil, err
	}
	s.lines.Store(n)

	return s, nil
}

// ensureMode reopens the handle only when the requested mode differs from
// the current one. Callers must hold the sink lock.
func (s *fileSink) ensureMode(m fileMode) error {
	if s.mode == m && s.fd != nil {
		return nil
	}

	if s.fd != nil {
		s.fd.Close()
		s.fd = nil
		s.mode = modeClosed
	}

	var flags int
	switch m {
	case modeAppend:
		flags = os.O_CREATE | os.O_APPEND | os.O_WRONLY
	case modeRead:
		flags = os.O_RDONLY
	case modeWrite:
		flags = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	default:
		return fmt.Errorf("invalid file mode %d", m)
	}

	fd, err := os.OpenFile(s.path, flags, defaultFileMode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}

	s.fd = fd
	s.mode = m
	return nil
}

// closeLocked releases the handle without syncing. Callers must hold the
// sink lock.
func (s *fileSink) closeLocked() {
	if s.fd != nil {
		s.fd.Close()
		s.fd = nil
	}
	s.mode = modeClosed
}

// Append writes one newline-terminated formatted line, then applies the
// flush policy: sync immediately for severities at or above the flush
// threshold, otherwise only when the periodic interval has elapsed. This
// trades durability against flash wear on the hot path.
func (s *fileSink) Append(line []byte, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMode(modeAppend); err != nil {
		return err
	}
	if _, err := s.fd.Write(line); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	s.lines.Add(1)

	if level >= s.flushThreshold || time.Since(s.lastFlush) >= s.flushInterval {
		if err := s.fd.Sync(); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		s.lastFlush = time.Now()
	}
	return nil
}

// Lines reports the number of terminated records currently in the file.
func (s *fileSink) Lines() uint64 {
	return s.lines.Load()
}

// countLines reads the whole file once and counts newline characters.
// Callers must hold the sink lock; the handle is left in read mode.
func (s *fileSink) countLines() (uint64, error) {
	if err := s.ensureMode(modeRead); err != nil {
		return 0, err
	}
	if _, err := s.fd.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}

	var n uint64
	reader := bufio.NewReader(s.fd)
	for {
		b, err := reader.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("count lines: %w", err)
		}
		if b == '\n' {
			n++
		}
	}
}

// RotateKeepLatestPercent bounds the file by discarding the oldest lines.
// percent is clamped to [0,100]; keep = floor(total*percent/100). The most
// recent keep lines are copied verbatim to a temporary file which then
// atomically replaces the original by remove-then-rename. percent=0 empties
// the file and percent=100 is a content no-op, with no special cases.
func (s *fileSink) RotateKeepLatestPercent(percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	total, err := s.countLines()
	if err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	keep := total * uint64(percent) / 100
	skip := total - keep

	if _, err := s.fd.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rotate seek: %w", err)
	}

	tmpPath := s.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("rotate open temp: %w", err)
	}

	reader := bufio.NewReader(s.fd)
	var copied uint64
	for copied < total {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Unterminated tail is not a record; drop it.
			break
		}
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("rotate read: %w", err)
		}
		if copied >= skip {
			if _, err := tmp.Write(line); err != nil {
				tmp.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("rotate write: %w", err)
			}
		}
		copied++
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("rotate sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rotate close temp: %w", err)
	}

	s.closeLocked()
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("rotate remove: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rotate rename: %w", err)
	}

	s.lines.Store(keep)
	return s.ensureMode(modeAppend)
}

// Clear truncates the log unconditionally: the degenerate rotation. Opening
// in write mode truncates, then the handle returns to append mode.
func (s *fileSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMode(modeWrite); err != nil {
		return err
	}
	s.lines.Store(0)
	return s.ensureMode(modeAppend)
}

// Dump streams the entire current file byte-for-byte to w without altering
// the line counter.
func (s *fileSink) Dump(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureMode(modeRead); err != nil {
		return err
	}
	if _, err := s.fd.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("dump seek: %w", err)
	}
	if _, err := io.Copy(w, s.fd); err != nil {
		return fmt.Errorf("dump copy: %w", err)
	}
	return s.ensureMode(modeAppend)
}

// Flush forces a sync of any buffered appends.
func (s *fileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd == nil || s.mode != modeAppend {
		return nil
	}
	if err := s.fd.Sync(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	s.lastFlush = time.Now()
	return nil
}

// Close syncs pending appends and releases the handle.
func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fd == nil {
		return nil
	}
	if s.mode == modeAppend {
		s.fd.Sync()
	}
	err := s.fd.Close()
	s.fd = nil
	s.mode = modeClosed
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
