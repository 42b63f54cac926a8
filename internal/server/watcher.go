package server

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads one config file when it is written. The directory is
// watched rather than the file so editors that replace the file on save are
// still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload func(path string) error
	done     chan struct{}
	stopped  chan struct{}
	started  bool
	log      *logrus.Entry
}

// NewWatcher creates a watcher for the file at path.
func NewWatcher(path string, onReload func(string) error, log *logrus.Entry) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	if log == nil {
		log = logrus.WithField("component", "watch")
	}
	return &Watcher{
		watcher:  fsWatcher,
		path:     abs,
		onReload: onReload,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		log:      log.WithField("file", abs),
	}, nil
}

// Start begins watching in a goroutine.
func (w *Watcher) Start() {
	w.started = true
	go func() {
		defer close(w.stopped)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				w.log.WithField("op", event.Op.String()).Debug("config changed")
				if err := w.onReload(w.path); err != nil {
					w.log.WithError(err).Warn("config reload failed, keeping previous config")
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("watch error")

			case <-w.done:
				return
			}
		}
	}()
}

// Stop stops the watcher and waits for its goroutine.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.watcher.Close()
	if w.started {
		<-w.stopped
	}
	return err
}
