// Package watcher reports settled changes to individual files, such as the loan policy file.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a set of files through their parent directories, so that
// atomic replace-by-rename (used by most editors and config tools) is seen.
type Watcher struct {
	logger *slog.Logger
	opts   Options
	fs     *fsnotify.Watcher

	mu      sync.Mutex
	files   map[string]struct{}
	pending map[string]*pendingChange

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

type pendingChange struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher. Call Watch for each file, then Start.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		fs:      fsw,
		files:   make(map[string]struct{}),
		pending: make(map[string]*pendingChange),
		events:  make(chan Event, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers a file. The file itself may not exist yet, but its directory must.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	dir := filepath.Dir(abs)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("watch %s: parent directory not available", path)
	}

	w.mu.Lock()
	_, dirWatched := w.watchedDirLocked(dir)
	w.files[abs] = struct{}{}
	w.mu.Unlock()

	if dirWatched {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	w.logger.Debug("watching file", "path", abs)
	return nil
}

func (w *Watcher) watchedDirLocked(dir string) (string, bool) {
	for f := range w.files {
		if filepath.Dir(f) == dir {
			return f, true
		}
	}
	return "", false
}

// Start processes filesystem notifications until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	_, tracked := w.files[path]
	w.mu.Unlock()
	if !tracked || w.opts.shouldIgnore(path) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename onto the path shows up as Create right after; only report removal
		// if the file is really gone once things settle.
		w.settle(path)
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		w.settle(path)
	}
}

// settle (re)arms the settle timer for path.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if ok {
		p.timer.Stop()
	} else {
		p = &pendingChange{}
		w.pending[path] = p
	}
	if info, err := os.Stat(path); err == nil {
		p.size, p.modTime = info.Size(), info.ModTime()
	} else {
		p.size, p.modTime = -1, time.Time{}
	}
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
}

func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		w.emit(Event{Type: EventRemoved, Path: path})
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size, p.modTime = info.Size(), info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		w.mu.Unlock()
		return
	}

	delete(w.pending, path)
	w.mu.Unlock()
	w.emit(Event{Type: EventChanged, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// Events returns settled file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns errors reported by the underlying notifier.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases resources. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, p := range w.pending {
			p.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
