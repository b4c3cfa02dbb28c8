package tracker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	vcserrors "vcs/internal/errors"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher refreshes tracked files when they change on disk.
type Watcher struct {
	tracker *Tracker
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(t *Tracker) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		tracker: t,
		watcher: fw,
		logger:  t.logger,
		done:    make(chan struct{}),
	}

	if err := w.addTree(t.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("initializing watcher: %w", err)
	}

	go w.watchLoop()
	return w, nil
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.tracker.root, p)
		if err != nil {
			return err
		}
		if rel != "." && w.tracker.Ignored(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.tracker.root, event.Name)
	if err != nil {
		w.logger.Error("getting relative path", zap.Error(err))
		return
	}
	rel = filepath.ToSlash(rel)
	if w.tracker.Ignored(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if _, err := w.tracker.Refresh(rel); err != nil && !vcserrors.IsType(err, vcserrors.ErrorTypeNotFound) {
		w.logger.Error("refreshing file", zap.String("path", rel), zap.Error(err))
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
