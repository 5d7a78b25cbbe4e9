// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/reqcheck/internal/domain/ports"
)

// DefaultPatterns match every document format the loader can read.
var DefaultPatterns = []string{"**/*.{md,markdown,txt,docx,odt,rtf,html,htm,pdf}"}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// Paths are matched relative to the watched directory with doublestar patterns.
type FSNotifyWatcher struct {
	watcher  *fsnotify.Watcher
	patterns []string
	ignore   []string
	logger   *slog.Logger
}

// Option configures a watcher.
type Option func(*FSNotifyWatcher)

// WithIgnore skips paths matching any of the patterns, even if they match an include pattern.
func WithIgnore(patterns ...string) Option {
	return func(w *FSNotifyWatcher) { w.ignore = append(w.ignore, patterns...) }
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(logger *slog.Logger) Option {
	return func(w *FSNotifyWatcher) { w.logger = logger }
}

// NewFSNotifyWatcher creates a new file watcher for the include patterns (DefaultPatterns when empty).
func NewFSNotifyWatcher(patterns []string, opts ...Option) (*FSNotifyWatcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	w := &FSNotifyWatcher{patterns: patterns, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range append(append([]string(nil), w.patterns...), w.ignore...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.watcher = fw
	return w, nil
}

// Watch starts monitoring the directory tree and emits events.
// Subdirectories, including ones created later, are watched too. Matching
// files already inside a newly created subdirectory are reported as created.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if _, err := w.addTree(dir, dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)
		emit := func(ev ports.FileEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						found, err := w.addTree(dir, event.Name)
						if err != nil {
							w.logger.Warn("Could not watch new directory", "dir", event.Name, "error", err)
						}
						for _, path := range found {
							if !emit(ports.FileEvent{Path: path, Operation: ports.FileCreated}) {
								return
							}
						}
						continue
					}
				}
				if !w.Matches(dir, event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&fsnotify.Remove == fsnotify.Remove:
					op = ports.FileDeleted
				default:
					continue
				}

				if !emit(ports.FileEvent{Path: event.Name, Operation: op}) {
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("File watcher error", "dir", dir, "error", err)
			}
		}
	}()

	return events, nil
}

// Find lists the files under dir, at any depth, selected by the patterns.
func (w *FSNotifyWatcher) Find(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && w.Matches(dir, path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// addTree watches root and every directory below it. It returns the matching
// files found on the way, relative to the watched dir.
func (w *FSNotifyWatcher) addTree(dir, root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if w.Matches(dir, path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// Matches reports whether path, inside dir, is selected by the include and ignore patterns.
func (w *FSNotifyWatcher) Matches(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	for _, p := range w.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range w.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
