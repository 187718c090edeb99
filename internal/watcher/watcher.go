package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher monitors a hand-history directory for new or growing .txt files.
type DirWatcher struct {
	Dir string

	watcher  *fsnotify.Watcher
	done     chan struct{}
	mu       sync.Mutex
	scanMu   sync.Mutex
	stopOnce sync.Once

	seen map[string]fileState

	onFileChanged func(path string)
	onError       func(err error)
}

type fileState struct {
	size    int64
	modTime time.Time
}

type Config struct {
	OnFileChanged func(path string)
	OnError       func(err error)
}

func New(dir string, cfg Config) (*DirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &DirWatcher{
		Dir:           filepath.Clean(dir),
		watcher:       w,
		done:          make(chan struct{}),
		seen:          make(map[string]fileState),
		onFileChanged: cfg.OnFileChanged,
		onError:       cfg.OnError,
	}, nil
}

// Start primes the watcher with the directory's current contents (without
// firing callbacks; the caller is expected to have ingested them already) and
// begins watching for changes.
func (w *DirWatcher) Start() error {
	slog.Info("watcher starting", "dir", w.Dir)
	if err := w.watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.Dir, err)
	}

	w.primeExisting()

	go w.watchLoop()
	return nil
}

func (w *DirWatcher) Stop() {
	w.stopOnce.Do(func() {
		slog.Info("watcher stopped", "dir", w.Dir)
		close(w.done)
		_ = w.watcher.Close()
	})
}

func (w *DirWatcher) primeExisting() {
	w.mu.Lock()
	defer w.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(w.Dir, "*.txt"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil {
			w.seen[path] = fileState{size: info.Size(), modTime: info.ModTime()}
		}
	}
}

func (w *DirWatcher) watchLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isHistoryFile(event.Name) {
				continue
			}
			w.checkFile(filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case <-ticker.C:
			// Periodic poll as fallback
			w.scanAll()
		}
	}
}

// scanAll stats every history file in the directory and fires callbacks for
// anything new or grown since the last look.
func (w *DirWatcher) scanAll() {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	matches, err := filepath.Glob(filepath.Join(w.Dir, "*.txt"))
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	for _, path := range matches {
		w.checkFile(path)
	}
}

func (w *DirWatcher) checkFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Created-then-removed races are expected; anything else is reported.
		if !os.IsNotExist(err) && w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	prev, known := w.seen[path]
	current := fileState{size: info.Size(), modTime: info.ModTime()}
	changed := !known || current.size != prev.size || current.modTime.After(prev.modTime)
	if changed {
		w.seen[path] = current
	}
	w.mu.Unlock()

	if changed && w.onFileChanged != nil {
		slog.Debug("history file changed", "path", path, "size", current.size)
		w.onFileChanged(path)
	}
}

func isHistoryFile(path string) bool {
	name := filepath.Base(path)
	matched, err := filepath.Match("*.txt", name)
	return err == nil && matched
}
