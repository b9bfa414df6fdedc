package filesystem

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 100 * time.Millisecond

// Watcher monitors the file system for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	Events    chan []string // carries each debounced batch of changed paths, sorted
	done      chan struct{}

	root    string
	ignorer *Ignorer
	logger  *slog.Logger
}

// NewWatcher creates a new Watcher for the given root directory.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		Events:    make(chan []string, 10),
		done:      make(chan struct{}),
		root:      root,
		ignorer:   NewIgnorer(root),
		logger:    logger,
	}

	// fsnotify is not recursive, so every directory is added explicitly.
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldIgnore(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.startLoop()

	return w, nil
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() {
	close(w.done)
	w.fsWatcher.Close()
}

func (w *Watcher) shouldIgnore(path string) bool {
	if w.ignorer == nil {
		w.ignorer = NewIgnorer(w.root)
	}
	if w.root == "" {
		return w.ignorer.ShouldIgnore(path, filepath.Dir(path))
	}
	return w.ignorer.ShouldIgnore(path, w.root)
}

func (w *Watcher) startLoop() {
	timer := time.NewTimer(debounceDuration)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}

			// CHMOD events are noisy and never change content.
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Has(fsnotify.Create) {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if err := w.fsWatcher.Add(event.Name); err != nil {
						w.logger.Warn("watching new directory", "path", event.Name, "error", err)
					}
				}
			}

			pending[event.Name] = struct{}{}
			timer.Reset(debounceDuration)

		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			clear(pending)
			select {
			case w.Events <- batch:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}
