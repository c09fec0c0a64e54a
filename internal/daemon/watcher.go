// Package daemon keeps build.ninja in sync with its build description.
package daemon

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreated FileEventType = iota + 1
	FileEventModified
	FileEventDeleted
	FileEventRenamed
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreated:
		return "created"
	case FileEventModified:
		return "modified"
	case FileEventDeleted:
		return "deleted"
	case FileEventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event
type FileEvent struct {
	Path      string
	Type      FileEventType
	Timestamp time.Time
}

// WatcherConfig contains configuration for the file watcher
type WatcherConfig struct {
	// Files are the files to watch. Their directories are watched so that
	// editors replacing a file by rename are noticed.
	Files []string

	// Debounce is the quiet period after the last event before it is
	// delivered.
	Debounce time.Duration

	Log *zerolog.Logger
}

// DefaultWatcherConfig returns the configuration watching a single build
// description.
func DefaultWatcherConfig(file string) *WatcherConfig {
	return &WatcherConfig{
		Files:    []string{file},
		Debounce: 200 * time.Millisecond,
	}
}

// Watcher reports changes of a set of files. Events for one file that
// arrive within the debounce period are merged.
type Watcher struct {
	config  *WatcherConfig
	watcher *fsnotify.Watcher
	files   map[string]bool
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	mu      sync.RWMutex
	running bool

	// Debouncing
	pending   map[string]*time.Timer
	pendingMu sync.Mutex
}

// NewWatcher creates a new file watcher
func NewWatcher(config *WatcherConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool, len(config.Files))
	for _, f := range config.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsWatcher.Close()
			return nil, err
		}
		files[abs] = true
	}

	return &Watcher{
		config:  config,
		watcher: fsWatcher,
		files:   files,
		events:  make(chan FileEvent, 16),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

func (w *Watcher) logger() *zerolog.Logger {
	if w.config.Log == nil {
		l := zerolog.Nop()
		return &l
	}
	return w.config.Log
}

// Start begins watching for file changes
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			return err
		}
		w.logger().Debug().Str("dir", d).Msg("watching")
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.done)

	w.pendingMu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()

	return w.watcher.Close()
}

// Events returns the channel of file events
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Errors returns the channel of errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// processEvents processes fsnotify events and emits debounced FileEvents
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
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
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// handleEvent handles a single fsnotify event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return
	}

	var eventType FileEventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = FileEventCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = FileEventModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = FileEventDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = FileEventRenamed
	default:
		return
	}

	w.debounce(FileEvent{
		Path:      path,
		Type:      eventType,
		Timestamp: time.Now(),
	})
}

// debounce delivers event once no newer event for the same path arrived
// within the debounce period.
func (w *Watcher) debounce(event FileEvent) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if t, ok := w.pending[event.Path]; ok {
		t.Stop()
	}

	w.pending[event.Path] = time.AfterFunc(w.config.Debounce, func() {
		w.pendingMu.Lock()
		delete(w.pending, event.Path)
		w.pendingMu.Unlock()

		select {
		case w.events <- event:
		case <-w.done:
		}
	})
}

// IsRunning returns whether the watcher is running
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
