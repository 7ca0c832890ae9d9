package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherFlagsStaleness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))

	w, err := NewWatcher(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.False(t, w.Stale(), "fresh watcher must not be stale")

	require.NoError(t, os.WriteFile(path, []byte(`[{"case_id":"A1"}]`), 0644))

	deadline := time.Now().Add(5 * time.Second)
	for !w.Stale() {
		if time.Now().After(deadline) {
			t.Fatal("watcher never flagged the corpus edit")
		}
		time.Sleep(50 * time.Millisecond)
	}

	w.Reset()
	require.False(t, w.Stale(), "Reset must clear the stale flag")
}

func TestWatcherStartFailureReleasesHandles(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "cases.json"))
	require.NoError(t, err)

	require.Error(t, w.Start(context.Background()), "watching a nonexistent directory must fail")

	// A failed Start leaves the watcher stopped with its file handles
	// released; Stop must return immediately instead of waiting on a loop
	// that never ran.
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after failed Start")
	}
}
