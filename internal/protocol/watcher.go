package protocol

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"agentsuite/internal/logging"
)

// Watcher watches protocol directories for changes and reloads the Registry
// when a protocol document is created, modified or removed. It watches
// workspace-relative paths so it works wherever agentsuite is running.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	registry    *Registry
	dirs        []string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher over the given directories (the workspace
// root plus any configured protocol subdirectories).
func NewWatcher(registry *Registry, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsw,
		registry:    registry,
		dirs:        dirs,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			// Directory may not exist yet; keep going with the rest
			logging.Get(logging.CategoryWatcher).Warn("watch failed for %s: %v", dir, err)
			continue
		}
		logging.Watcher("watching directory: %s", dir)
	}

	go w.loop(ctx)
	return nil
}

// Stop halts the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
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
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatcher).Warn("watch error: %v", err)
		}
	}
}

// handleEvent reloads the registry for relevant, debounced events.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isProtocolFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	last, seen := w.debounceMap[event.Name]
	now := time.Now()
	if seen && now.Sub(last) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.debounceMap[event.Name] = now
	w.mu.Unlock()

	logging.Watcher("protocol change detected (%s %s), reloading registry",
		event.Op, filepath.Base(event.Name))
	w.registry.Reload()
}

func isProtocolFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "Protocol_") && strings.HasSuffix(base, ".md")
}
