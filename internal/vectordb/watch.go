package vectordb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Loader is the part of a store a Watcher needs.
type Loader interface {
	Load(ctx context.Context, dir string) error
}

// Watcher reloads a store whenever a new snapshot is published in dir.
// Publication is detected through the manifest, which Persist writes last.
type Watcher struct {
	dir      string
	store    Loader
	debounce time.Duration
	log      zerolog.Logger
	onReload func(error)
}

// NewWatcher creates a watcher for the snapshot in dir.
func NewWatcher(dir string, store Loader, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		store:    store,
		debounce: 500 * time.Millisecond,
		log:      log,
	}
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(error)) { w.onReload = fn }

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info().Str("dir", w.dir).Msg("watching snapshot")

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != ManifestFile {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			err := w.store.Load(ctx, w.dir)
			if err != nil {
				w.log.Error().Err(err).Msg("snapshot reload failed")
			}
			if w.onReload != nil {
				w.onReload(err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("snapshot watcher error")
		}
	}
}
