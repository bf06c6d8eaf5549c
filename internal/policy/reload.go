package policy

import (
	"context"
	"log/slog"

	"github.com/almogrr/projectTrainigLibary/internal/watcher"
)

// Reloader keeps a Table in sync with a policy file.
// A file that fails to parse is logged and the previous policy stays active.
// Removing the file reverts to the fallback durations.
type Reloader struct {
	table    *Table
	path     string
	fallback Durations
	watcher  *watcher.Watcher
	onChange func(Durations)
	logger   *slog.Logger
}

// NewReloader watches path and applies changes to table.
func NewReloader(table *Table, path string, fallback Durations, logger *slog.Logger) (*Reloader, error) {
	w, err := watcher.New(logger, watcher.Options{})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return &Reloader{table: table, path: path, fallback: fallback, watcher: w, logger: logger}, nil
}

// OnChange registers fn to run after each successful reload.
func (r *Reloader) OnChange(fn func(Durations)) *Reloader {
	r.onChange = fn
	return r
}

// Run applies file changes until ctx is canceled.
func (r *Reloader) Run(ctx context.Context) {
	go r.watcher.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-r.watcher.Errors():
			r.logger.Warn("policy watcher error", "error", err)
		case ev := <-r.watcher.Events():
			r.apply(ev)
		}
	}
}

func (r *Reloader) apply(ev watcher.Event) {
	next := r.fallback
	if ev.Type == watcher.EventChanged {
		d, err := LoadFile(r.path, r.fallback)
		if err != nil {
			r.logger.Error("policy file rejected, keeping previous policy", "path", r.path, "error", err)
			return
		}
		next = d
	}

	if err := r.table.Replace(next); err != nil {
		r.logger.Error("policy update rejected", "path", r.path, "error", err)
		return
	}
	r.logger.Info("loan policy reloaded", "path", r.path, "event", ev.Type.String(), "categories", len(next))
	if r.onChange != nil {
		r.onChange(r.table.Snapshot())
	}
}

// Stop releases the file watcher.
func (r *Reloader) Stop() error {
	return r.watcher.Stop()
}
