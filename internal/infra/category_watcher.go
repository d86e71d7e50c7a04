package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// CategoryWatcher hot-reloads the category file when another process edits it.
type CategoryWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	reload  func() error
	logger  *zap.Logger
}

// NewCategoryWatcher watches the directory containing path, since atomic
// renames replace the file inode and would drop a direct file watch.
func NewCategoryWatcher(path string, reload func() error, logger *zap.Logger) (*CategoryWatcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	return &CategoryWatcher{watcher: w, path: filepath.Clean(path), reload: reload, logger: logger}, nil
}

// Run watches for file changes and reloads categories. Blocks until ctx is cancelled.
func (c *CategoryWatcher) Run(ctx context.Context) error {
	defer c.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-c.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					if err := c.reload(); err != nil {
						c.logger.Warn("category hot-reload failed", zap.Error(err))
					} else {
						c.logger.Info("app categories reloaded", zap.String("path", c.path))
					}
				})
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("category watcher error", zap.Error(err))
		}
	}
}
