package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()

	w, err := New(t.TempDir(), Config{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	w.Stop()
	w.Stop()
}

func TestDirWatcherDetectsNewFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changedCh := make(chan string, 1)
	w, err := New(dir, Config{OnFileChanged: func(path string) {
		select {
		case changedCh <- path:
		default:
		}
	}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	newFile := filepath.Join(dir, "HH20240701_Indus.txt")
	if err := os.WriteFile(newFile, []byte("PokerStars Hand #1: ..."), 0o600); err != nil {
		t.Fatalf("write history file: %v", err)
	}

	select {
	case got := <-changedCh:
		if filepath.Clean(got) != filepath.Clean(newFile) {
			t.Fatalf("detected path = %q, want %q", got, newFile)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for file detection")
	}
}

func TestDirWatcherDetectsAppendedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "HH20240701_Indus.txt")
	if err := os.WriteFile(existing, []byte("initial"), 0o600); err != nil {
		t.Fatalf("write history file: %v", err)
	}

	changedCh := make(chan string, 1)
	w, err := New(dir, Config{OnFileChanged: func(path string) {
		select {
		case changedCh <- path:
		default:
		}
	}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	// Files present at startup are primed, not re-reported.
	select {
	case got := <-changedCh:
		t.Fatalf("existing file reported as changed: %q", got)
	case <-time.After(700 * time.Millisecond):
	}

	f, err := os.OpenFile(existing, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("\nmore hands"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	select {
	case got := <-changedCh:
		if filepath.Clean(got) != filepath.Clean(existing) {
			t.Fatalf("detected path = %q, want %q", got, existing)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for append detection")
	}
}

func TestDirWatcherIgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	changedCh := make(chan string, 1)
	w, err := New(dir, Config{OnFileChanged: func(path string) {
		select {
		case changedCh <- path:
		default:
		}
	}})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	otherFile := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(otherFile, []byte("ignore me"), 0o600); err != nil {
		t.Fatalf("write non-history file: %v", err)
	}

	select {
	case got := <-changedCh:
		t.Fatalf("unexpected detection: %q", got)
	case <-time.After(700 * time.Millisecond):
	}
}
