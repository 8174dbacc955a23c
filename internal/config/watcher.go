package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bnema/vibepanel/internal/logging"
)

// Watcher observes the loaded config file on disk. The running panel never
// reloads (config is immutable for the process); the watcher only tells the
// user that a restart is needed to apply their edit.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	onEdit  func()
}

// NewWatcher watches the file at path. onEdit, if non-nil, fires on each
// write or create event in addition to the log line. Returns nil (and logs)
// when the defaults were used and there is no file to watch.
func NewWatcher(ctx context.Context, path string, onEdit func()) (*Watcher, error) {
	log := logging.FromContext(ctx)

	if path == "" {
		log.Debug().Msg("config watcher: no source file, nothing to watch")
		return nil, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, path: path, onEdit: onEdit}
	go w.run(ctx)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	log := logging.FromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				log.Info().Str("path", w.path).
					Msg("config file changed on disk; restart vibepanel to apply")
				if w.onEdit != nil {
					w.onEdit()
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	return w.watcher.Close()
}
