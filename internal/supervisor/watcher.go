package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sentinel/internal/logging"
	"sentinel/internal/trace"

	"github.com/fsnotify/fsnotify"
)

// ArtifactWatcher watches a run's artifacts directory for markdown files and
// feeds settled writes to the hook. Editors save in bursts, so events are
// debounced before the hook sees them.
type ArtifactWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	hook        *Hook
	emitter     *trace.Emitter
	dir         string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// Seen artifact names; repeated writes to a known artifact rebind
	// without emitting another artifact_created event.
	seen map[string]bool
}

// NewArtifactWatcher creates a watcher over dir. The emitter records an
// artifact_created event for each new artifact before the hook processes it.
func NewArtifactWatcher(dir string, hook *Hook, emitter *trace.Emitter) (*ArtifactWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ArtifactWatcher{
		watcher:     w,
		hook:        hook,
		emitter:     emitter,
		dir:         dir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		seen:        make(map[string]bool),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop or context cancellation.
func (aw *ArtifactWatcher) Start(ctx context.Context) error {
	aw.mu.Lock()
	if aw.running {
		aw.mu.Unlock()
		return nil
	}
	aw.running = true
	aw.mu.Unlock()

	if err := os.MkdirAll(aw.dir, 0o755); err != nil {
		logging.Get(logging.CategorySupervisor).Warnf("artifact watcher: create dir %s: %v", aw.dir, err)
	}
	if err := aw.watcher.Add(aw.dir); err != nil {
		logging.Get(logging.CategorySupervisor).Warnf("artifact watcher: watch %s failed: %v", aw.dir, err)
	} else {
		logging.Supervisor("artifact watcher: watching %s", aw.dir)
	}

	go aw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (aw *ArtifactWatcher) Stop() {
	aw.mu.Lock()
	if !aw.running {
		aw.mu.Unlock()
		return
	}
	aw.running = false
	aw.mu.Unlock()

	close(aw.stopCh)
	<-aw.doneCh

	if err := aw.watcher.Close(); err != nil {
		logging.Get(logging.CategorySupervisor).Errorf("artifact watcher: close: %v", err)
	}
	logging.Supervisor("artifact watcher: stopped")
}

func (aw *ArtifactWatcher) run(ctx context.Context) {
	defer close(aw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-aw.stopCh:
			return

		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			aw.handleEvent(event)

		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySupervisor).Errorf("artifact watcher: %v", err)

		case <-ticker.C:
			aw.processSettled()
		}
	}
}

func (aw *ArtifactWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".md") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	aw.mu.Lock()
	aw.debounceMap[event.Name] = time.Now()
	aw.mu.Unlock()
}

// processSettled hands paths whose last write is older than the debounce
// window to the hook.
func (aw *ArtifactWatcher) processSettled() {
	aw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, t := range aw.debounceMap {
		if now.Sub(t) >= aw.debounceDur {
			settled = append(settled, path)
			delete(aw.debounceMap, path)
		}
	}
	aw.mu.Unlock()

	for _, path := range settled {
		aw.process(path)
	}
}

func (aw *ArtifactWatcher) process(path string) {
	name := artifactName(path)

	aw.mu.Lock()
	first := !aw.seen[name]
	aw.seen[name] = true
	aw.mu.Unlock()

	if first && aw.emitter != nil {
		if err := aw.emitter.EmitArtifact(path, "document", name); err != nil {
			logging.Get(logging.CategorySupervisor).Errorf("artifact watcher: record %s: %v", filepath.Base(path), err)
		}
	}

	if err := aw.hook.OnArtifactCreated(path); err != nil {
		logging.Get(logging.CategorySupervisor).Errorf("artifact watcher: process %s: %v", filepath.Base(path), err)
	}
}
