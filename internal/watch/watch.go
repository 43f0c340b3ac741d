// Package watch reports changes to a single project file.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a burst of events must stay quiet before a
// change is reported.
const DefaultSettle = 150 * time.Millisecond

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher watches the directory of a file and filters for that file. Editors
// and atomic writers replace files by rename, so watching the file itself
// would lose track of it after the first save.
type Watcher struct {
	path    string
	dir     string
	settle  time.Duration
	watcher *fsnotify.Watcher
}

// New starts watching path.
func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	log.Info("fsnotify watching dir", "dir", dir)
	return &Watcher{path: abs, dir: dir, settle: DefaultSettle, watcher: fw}, nil
}

// SetSettle changes the quiet period. Zero reports every event.
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = max(d, 0)
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Next blocks until the file is written or recreated.
func (w *Watcher) Next(ctx context.Context) error {
	var (
		timer  *time.Timer
		fire   <-chan time.Time
		change bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fire:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return ErrClosed
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			if w.settle == 0 {
				return nil
			}
			if !change {
				change = true
				timer = time.NewTimer(w.settle)
				fire = timer.C
				continue
			}
			timer.Reset(w.settle)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrClosed
			}
			log.Debug("fsnotify error", "dir", w.dir, "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	if err := w.watcher.Close(); err != nil {
		log.Error("fsnotify fail to unwatch dir", "dir", w.dir, "error", err)
		return err
	}
	log.Debug("fsnotify dir unwatched", "dir", w.dir)
	return nil
}
