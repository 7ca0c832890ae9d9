package corpus

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"accidentadvisor/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the corpus file for changes. Chunks and index entries are
// derived deterministically from the corpus, so any change makes the built
// collection stale; the watcher only flags staleness, it never patches
// chunks in place.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	corpusPath  string
	debounceDur time.Duration
	lastEvent   time.Time
	stale       bool
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewWatcher creates a watcher for the given corpus file.
func NewWatcher(corpusPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		corpusPath:  filepath.Clean(corpusPath),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the corpus file's directory. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.corpusPath)); err != nil {
		// The loop never starts, so release the fsnotify handles here and
		// leave the watcher stopped.
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
		return err
	}

	go w.loop(ctx)
	logging.Corpus("watching corpus file %s for changes", w.corpusPath)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.corpusPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.mu.Lock()
			if time.Since(w.lastEvent) < w.debounceDur {
				w.mu.Unlock()
				continue
			}
			w.lastEvent = time.Now()
			w.stale = true
			w.mu.Unlock()

			logging.CorpusWarn("corpus file changed (%s); built index is stale until rebuilt", event.Op)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryCorpus).Error("watcher error: %v", err)
		}
	}
}

// Stale reports whether the corpus changed since the last Reset.
func (w *Watcher) Stale() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stale
}

// Reset clears the stale flag after a rebuild.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stale = false
}

// Stop stops the watcher and releases the underlying file handles.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()
	<-w.doneCh
}
