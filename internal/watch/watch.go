// Package watch provides file watching with debouncing using fsnotify. The
// server uses it to reload a local catalog as soon as it is edited.
package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "gitline/internal/log"
)

// DefaultDebounce coalesces the burst of writes an editor produces on save.
const DefaultDebounce = 200 * time.Millisecond

// Event is one file system change.
type Event struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Handler receives the events of one debounced burst.
type Handler func([]Event)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet period before the handler runs.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher watches files and directories. Files are watched through their
// parent directory so atomic replacements (write temp, rename) are seen.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	deb      *Debouncer

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a watcher calling handler after each debounced burst.
func New(handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: handler is nil")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		fw:       fw,
		debounce: DefaultDebounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.deb = NewDebouncer(w.debounce, handler)

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Add watches path. A directory reports changes to any entry; a file only
// to itself.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	dir := abs
	w.mu.Lock()
	if info.IsDir() {
		w.dirs[abs] = true
	} else {
		dir = filepath.Dir(abs)
		w.files[abs] = true
	}
	w.mu.Unlock()

	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	appLog.Debug("watching", "path", abs, "dir", dir)
	return nil
}

func (w *Watcher) matches(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[path] || w.dirs[filepath.Dir(path)]
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			path, err := filepath.Abs(ev.Name)
			if err != nil || !w.matches(path) {
				continue
			}
			w.deb.Add(Event{Path: path, Op: ev.Op, Time: time.Now()})
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			appLog.Error("file watch error", err)
		}
	}
}

// Close stops watching. Pending events are dropped.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
		w.deb.Stop()
	})
	return err
}

// Debouncer collects events and hands them over once no new event arrived
// for the configured duration.
type Debouncer struct {
	d  time.Duration
	fn Handler

	mu      sync.Mutex
	pending []Event
	timer   *time.Timer
	stopped bool
}

// NewDebouncer returns a debouncer calling fn.
func NewDebouncer(d time.Duration, fn Handler) *Debouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &Debouncer{d: d, fn: fn}
}

// Add records ev and restarts the quiet period.
func (d *Debouncer) Add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = append(d.pending, ev)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.d, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	events := d.pending
	d.pending = nil
	stopped := d.stopped
	d.mu.Unlock()
	if stopped || len(events) == 0 {
		return
	}
	d.fn(events)
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
