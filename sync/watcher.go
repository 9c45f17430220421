package sync

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 2 * time.Second

// Watcher monitors the vault for changes and queues an upload once the
// tree has been quiet for the debounce interval.
type Watcher struct {
	root     string
	queue    *RunQueue
	ignore   *SyncIgnore
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a filesystem watcher for the vault root.
func NewWatcher(root string, queue *RunQueue, ignore *SyncIgnore) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     root,
		queue:    queue,
		ignore:   ignore,
		debounce: debounceInterval,
		watcher:  w,
	}, nil
}

// Start begins watching and debouncing events. Blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	l := sub("watcher")
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	l.Info("watching vault", "root", w.root)

	pending := 0
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			rel, ok := w.toRelPath(event.Name)
			if !ok || w.skip(rel) {
				continue
			}

			pending++
			timer.Reset(w.debounce)

			// New directories need their own watch.
			if event.Has(fsnotify.Create) {
				w.watcher.Add(event.Name) //nolint:errcheck
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", "err", err)

		case <-timer.C:
			if pending > 0 {
				queued := w.queue.Push(DirectionUpload)
				l.Info("changes settled, upload requested", "events", pending, "queued", queued)
				pending = 0
			}
		}
	}
}

// toRelPath converts an absolute path to a slash-separated vault key.
func (w *Watcher) toRelPath(absPath string) (string, bool) {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// skip drops hidden paths, temp files and anything the ignore file excludes.
func (w *Watcher) skip(rel string) bool {
	return w.ignore.IsIgnored(rel, false)
}

// addRecursive adds a directory and all non-hidden subdirectories.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if d.IsDir() {
			base := filepath.Base(path)
			if HiddenName(base) && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Close closes the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
