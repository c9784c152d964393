// Package watcher keeps the profile store in sync with the profile
// directory.
//
// The directory is watched rather than individual files so atomic
// replace-by-rename edits are seen. Bursts of events are coalesced by a
// debounce window; after it the whole directory is re-read and the new
// snapshot is published only when some profile actually changed.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/profile"
)

var log = logging.NewLogger("watcher")

// DefaultDebounce is the quiet period after the last event before a reload.
const DefaultDebounce = 500 * time.Millisecond

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// ReloadFunc observes every completed reload.
type ReloadFunc func(snap *profile.Snapshot, diff profile.Diff, errs []error)

// Watcher rebuilds the profile snapshot on directory changes. It is the
// store's only writer.
type Watcher struct {
	loader   *profile.Loader
	store    *profile.Store
	debounce time.Duration
	onReload ReloadFunc
}

// New creates a watcher. A non-positive debounce selects DefaultDebounce.
func New(loader *profile.Loader, store *profile.Store, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{loader: loader, store: store, debounce: debounce}
}

// OnReload registers fn to be called after each reload.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.onReload = fn
}

// Reload re-reads the directory and publishes the result if it differs from
// the current snapshot. Files that fail to load are skipped.
func (w *Watcher) Reload() (profile.Diff, []error) {
	next, errs := w.loader.Load()
	if len(errs) > 0 {
		log.Warnf("%d profile files skipped", len(errs))
	}

	current := w.store.Snapshot()
	diff := next.Compare(current)
	if !diff.Empty() {
		current = w.store.Replace(next)
		log.Infof("profiles reloaded (version %d): added=%v removed=%v changed=%v",
			current.Version(), diff.Added, diff.Removed, diff.Changed)
	} else {
		log.Debugf("profile directory changed, no profile differs")
	}

	if w.onReload != nil {
		w.onReload(current, diff, errs)
	}
	return diff, errs
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	dir := w.loader.Dir()
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Infof("watching %s", dir)

	// Catch up on edits made between the initial load and Add.
	w.Reload()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			log.Debugf("profile event: %s", event)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watch error: %v", err)

		case <-pending:
			pending = nil
			w.Reload()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&relevantOps == 0 {
		return false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.loader.Dir()) {
		return false
	}
	return w.loader.Matches(event.Name)
}
