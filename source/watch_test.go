package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingListener struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recordingListener) FileChanged(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, path)
}

func (r *recordingListener) FileRemoved(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recordingListener) has(kind, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.changed
	if kind == "removed" {
		list = r.removed
	}
	for _, p := range list {
		if p == path {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatchStreamsEvents(t *testing.T) {
	root := t.TempDir()
	d, err := NewDir(root, nil)
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	listener := &recordingListener{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Watch(ctx, listener) }()

	// Give the watcher a moment to register before generating events.
	time.Sleep(200 * time.Millisecond)

	writeFile(t, root, "a.md", "first")
	waitFor(t, "create of a.md", func() bool { return listener.has("changed", "a.md") })

	writeFile(t, root, "ignored.xyz", "unsupported extension")
	writeFile(t, root, ".hidden.md", "hidden")

	if err := os.Remove(filepath.Join(root, "a.md")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, "remove of a.md", func() bool { return listener.has("removed", "a.md") })

	// A directory created while watching joins the watch.
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	writeFile(t, root, "sub/b.md", "nested")
	waitFor(t, "create of sub/b.md", func() bool { return listener.has("changed", "sub/b.md") })

	if listener.has("changed", "ignored.xyz") || listener.has("changed", ".hidden.md") {
		t.Error("filtered paths leaked through the watch")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}
