// Package watch monitors vault data directories for edits made outside
// herald, such as hand-edited JSON or files written by other tools.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to a watched file.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
	OpRename Op = "rename"
)

// Event is a settled change to a watched file. Rapid successive writes to
// the same path collapse into a single event carrying the last op seen.
type Event struct {
	Path string
	Op   Op
}

// Stats tracks watcher activity for the summary printed on shutdown.
type Stats struct {
	Created  int
	Modified int
	Deleted  int
	Errors   int
	LastPath string
	LastTime time.Time
}

type pending struct {
	op Op
	at time.Time
}

// Watcher debounces filesystem events on a set of data directories and
// reports settled changes through OnChange.
type Watcher struct {
	mu          sync.RWMutex
	fsw         *fsnotify.Watcher
	dirs        []string
	debounceMap map[string]pending
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats

	// OnChange, when set, is called for each settled change. It runs on
	// the watcher goroutine.
	OnChange func(Event)

	// OnError, when set, receives watcher errors that do not stop the loop.
	OnError func(error)
}

// New creates a watcher over the given directories. Directories that do
// not exist yet are registered once they appear under a watched parent.
func New(dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	return &Watcher{
		fsw:         fsw,
		dirs:        dirs,
		debounceMap: make(map[string]pending),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; starting an already running
// watcher is a no-op. At least one directory must be watchable.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	added := 0
	for _, dir := range w.dirs {
		if err := w.fsw.Add(dir); err != nil {
			continue
		}
		added++
	}
	if added == 0 {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.fsw.Close()
		return fmt.Errorf("none of the watched directories exist")
	}

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the loop to exit. Calling Stop
// twice, or on a watcher that never started, is safe.
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

	w.fsw.Close()
}

// Watching reports whether the event loop is active.
func (w *Watcher) Watching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a snapshot of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	flushTicker := time.NewTicker(100 * time.Millisecond)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			if w.OnError != nil {
				w.OnError(err)
			}

		case <-flushTicker.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var op Op
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	// Subdirectories created under a watched dir (an images dir appearing
	// after the fact) join the watch set.
	if op == OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.fsw.Add(event.Name)
			return
		}
	}

	if !watchedFile(event.Name) {
		return
	}

	w.mu.Lock()
	w.stats.LastTime = time.Now()
	w.stats.LastPath = event.Name
	switch op {
	case OpCreate:
		w.stats.Created++
	case OpModify:
		w.stats.Modified++
	case OpDelete, OpRename:
		w.stats.Deleted++
	}
	w.debounceMap[event.Name] = pending{op: op, at: time.Now()}
	w.mu.Unlock()
}

func (w *Watcher) flushSettled() {
	w.mu.Lock()
	now := time.Now()
	var settled []Event
	for path, p := range w.debounceMap {
		if now.Sub(p.at) >= w.debounceDur {
			settled = append(settled, Event{Path: path, Op: p.op})
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	if w.OnChange == nil {
		return
	}
	for _, ev := range settled {
		w.OnChange(ev)
	}
}

// watchedFile reports whether a path holds vault data worth reporting.
func watchedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
