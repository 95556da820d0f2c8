package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	ch    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) handle(_ context.Context, changed []string) {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	suite := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(suite, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w, err := New(rec.handle, WithDebounce(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add(suite); err != nil {
		t.Fatalf("Add: %v", err)
	}
	start(t, w)

	for _, content := range []string{"b", "c", "d"} {
		if err := os.WriteFile(suite, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	changed := rec.wait(t)
	if len(changed) != 1 || changed[0] != suite {
		t.Errorf("changed = %v, want [%s]", changed, suite)
	}
	if stats := w.Stats(); stats.Triggers < 1 || stats.LastPath != suite {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestWatcherFiltersByExtension(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	rec := newRecorder()
	w, err := New(rec.handle, WithDebounce(20*time.Millisecond), WithExtensions(".yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}
	start(t, w)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	wanted := filepath.Join(dir, "checks.yaml")
	if err := os.WriteFile(wanted, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	changed := rec.wait(t)
	if len(changed) != 1 || changed[0] != wanted {
		t.Errorf("changed = %v, want [%s]", changed, wanted)
	}
}

func TestWatcherAddMissing(t *testing.T) {
	w, err := New(func(context.Context, []string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	if err := w.Add(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestSettled(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: map[string]time.Time{}}
	now := time.Now()
	w.pending["old"] = now.Add(-2 * time.Second)
	w.pending["new"] = now

	if got := w.settled(now); len(got) != 1 || got[0] != "old" {
		t.Errorf("settled = %v, want [old]", got)
	}
	if _, ok := w.pending["new"]; !ok {
		t.Error("recent path should stay pending")
	}
}
