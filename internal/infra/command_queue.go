package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/pointgate/internal/domain"
)

const (
	commandsDir   = "commands"
	stateFile     = "state.json"
	commandSuffix = ".json"
)

var commandSeq atomic.Uint64

// FileCommandQueue implements domain.CommandQueue as one JSON file per command
// in <data-dir>/commands. File names sort by submission time.
type FileCommandQueue struct {
	dir string
}

// NewFileCommandQueue creates a queue under dataDir.
func NewFileCommandQueue(dataDir string) *FileCommandQueue {
	return &FileCommandQueue{dir: filepath.Join(dataDir, commandsDir)}
}

// Dir returns the queue directory.
func (q *FileCommandQueue) Dir() string {
	return q.dir
}

// Submit writes cmd atomically so the daemon never sees a partial file.
func (q *FileCommandQueue) Submit(cmd domain.Command) error {
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	name := fmt.Sprintf("%020d-%d-%d%s", cmd.IssuedAt.UnixNano(), os.Getpid(), commandSeq.Add(1), commandSuffix)
	f := &jsonFile{path: filepath.Join(q.dir, name)}
	if err := f.atomicWrite(cmd); err != nil {
		return fmt.Errorf("failed to queue command: %w", err)
	}
	return nil
}

// Drain reads and deletes every pending command. Unparseable files are removed.
func (q *FileCommandQueue) Drain() ([]domain.Command, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read command queue: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), commandSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []domain.Command
	for _, name := range names {
		path := filepath.Join(q.dir, name)
		var cmd domain.Command
		found, err := (&jsonFile{path: path}).load(&cmd)
		os.Remove(path)
		if err != nil || !found {
			continue
		}
		out = append(out, cmd)
	}
	return out, nil
}

// Watch drains the queue on startup and whenever a file lands in it.
// Blocks until ctx is cancelled.
func (q *FileCommandQueue) Watch(ctx context.Context, handle func(domain.Command), logger *zap.Logger) error {
	if err := os.MkdirAll(q.dir, 0700); err != nil {
		return fmt.Errorf("failed to create command queue: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(q.dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", q.dir, err)
	}

	drain := func() {
		cmds, err := q.Drain()
		if err != nil {
			logger.Warn("failed to drain command queue", zap.Error(err))
			return
		}
		for _, cmd := range cmds {
			handle(cmd)
		}
	}

	drain()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Rename is how atomicWrite publishes; ignore the .tmp writes
			if strings.HasSuffix(event.Name, commandSuffix) && (event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				drain()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("command queue watcher error", zap.Error(err))
		}
	}
}

// JSONStateStore implements domain.StateStore as state.json.
type JSONStateStore struct {
	file jsonFile
}

// NewJSONStateStore creates a state store in dataDir.
func NewJSONStateStore(dataDir string) *JSONStateStore {
	return &JSONStateStore{file: jsonFile{path: filepath.Join(dataDir, stateFile)}}
}

func (s *JSONStateStore) Save(state domain.DaemonState) error {
	return s.file.atomicWrite(state)
}

func (s *JSONStateStore) Load() (*domain.DaemonState, error) {
	var st domain.DaemonState
	found, err := s.file.load(&st)
	if err != nil || !found {
		return nil, err
	}
	return &st, nil
}

// Remove deletes the state file (on clean shutdown).
func (s *JSONStateStore) Remove() error {
	if err := os.Remove(s.file.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ domain.CommandQueue = (*FileCommandQueue)(nil)
var _ domain.StateStore = (*JSONStateStore)(nil)
