package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type changeRecorder struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{ch: make(chan string, 16)}
}

func (r *changeRecorder) onChange(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.ch <- path
}

func (r *changeRecorder) wait(t *testing.T, timeout time.Duration) string {
	t.Helper()
	select {
	case p := <-r.ch:
		return p
	case <-time.After(timeout):
		t.Fatal("timed out waiting for change callback")
		return ""
	}
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func TestWatcher_FiresOnMatchingFile(t *testing.T) {
	dir := t.TempDir()
	rec := newChangeRecorder()
	w := NewWatcher(dir, []string{".txt"}, rec.onChange, nil, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	got := rec.wait(t, 5*time.Second)
	if filepath.Base(got) != "doc.txt" {
		t.Fatalf("callback path = %q, want doc.txt", got)
	}
}

func TestWatcher_IgnoresUnmatchedExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := newChangeRecorder()
	w := NewWatcher(dir, []string{".txt"}, rec.onChange, nil, WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got := rec.wait(t, 5*time.Second)
	if filepath.Base(got) != "keep.txt" {
		t.Fatalf("callback path = %q, want keep.txt", got)
	}
	// Give the ignored file's window a chance to fire wrongly.
	time.Sleep(150 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("callbacks = %d, want 1", rec.count())
	}
}

func TestWatcher_DebouncesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	rec := newChangeRecorder()
	w := NewWatcher(dir, []string{".txt"}, rec.onChange, nil, WithDebounce(200*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "burst.txt")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("rev"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec.wait(t, 5*time.Second)
	time.Sleep(300 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("callbacks = %d, want burst collapsed to 1", rec.count())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-yet")
	w := NewWatcher(root, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root not created: %v", err)
	}
}
