package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"flashlog/log"
)

// DefaultDebounceInterval is how long the watcher waits after the last file
// change before reloading, coalescing editor write/rename bursts.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher monitors the persisted config file for external edits and hands
// each successfully reloaded Config to a callback. The engine side applies
// it with ApplyConfig, which installs thresholds without re-persisting.
//
// The parent directory is watched rather than the file itself: the store
// replaces the file by rename on every save, which would silently detach a
// file-level watch.
type Watcher struct {
	store    *FileStore
	onChange func(log.Config)

	fw     *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher starts watching the store's file. onChange runs on the
// watcher's goroutine after each debounced change.
func NewWatcher(store *FileStore, onChange func(log.Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(store.Path())
	if dir == "" {
		dir = "."
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		store:    store,
		onChange: onChange,
		fw:       fw,
		stopCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	base := filepath.Base(w.store.Path())
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// Watch errors are transient on most filesystems; the next
			// event for the file retriggers a reload anyway.
		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload (re)arms the debounce timer so rapid successive writes
// produce a single reload.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.store.Load()
	if err != nil {
		return
	}
	w.onChange(cfg)
}

// Close stops the watcher and waits for its goroutine to exit. A reload
// already scheduled by the debounce timer may still fire.
func (w *Watcher) Close() error {
	close(w.stopCh)
	err := w.fw.Close()
	w.wg.Wait()

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()

	return err
}
