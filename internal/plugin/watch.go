package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/polylex/pkg/core"
)

// watchDebounce is how long a file must stay quiet before it is imported.
const watchDebounce = 150 * time.Millisecond

// DirLoader imports plugin files (*.json) from a directory.
// Existing ids are never overwritten, except by the file that created them.
type DirLoader struct {
	manager *Manager
	dir     string

	mu    sync.Mutex
	owned map[string]string // file path -> id imported from it
}

// NewDirLoader returns a loader for dir.
func NewDirLoader(m *Manager, dir string) *DirLoader {
	return &DirLoader{manager: m, dir: dir, owned: make(map[string]string)}
}

// Scan imports every plugin file in the directory in name order and returns
// the ids that were imported. A missing directory is not an error.
func (d *DirLoader) Scan(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && isPluginFile(e.Name()) {
			files = append(files, filepath.Join(d.dir, e.Name()))
		}
	}
	sort.Strings(files)

	var imported []string
	for _, path := range files {
		if id, ok := d.importFile(ctx, path); ok {
			imported = append(imported, id)
		}
	}
	return imported, nil
}

// Watch imports new or rewritten plugin files until ctx is cancelled.
func (d *DirLoader) Watch(ctx context.Context) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plugins directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(d.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", d.dir, err)
	}
	d.manager.logger.Info("watching plugins directory", "dir", d.dir)

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isPluginFile(event.Name) {
				continue
			}

			path := event.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				d.manager.logger.Info("plugin file changed", "file", filepath.Base(path))
				d.importFile(ctx, path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.manager.logger.Warn("plugin watcher error", "error", err)
		}
	}
}

func (d *DirLoader) importFile(ctx context.Context, path string) (string, bool) {
	logger := d.manager.logger.With("file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read plugin file", "error", err)
		return "", false
	}

	d.mu.Lock()
	_, owned := d.owned[path]
	d.mu.Unlock()

	policy := Deny
	if owned {
		policy = Allow
	}

	def, err := d.manager.Import(ctx, ImportRequest{FileName: path, Payload: data, OnConflict: policy})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			logger.Debug("plugin already present, file skipped", "error", err)
		} else {
			logger.Warn("failed to import plugin file", "error", err)
		}
		return "", false
	}

	d.mu.Lock()
	d.owned[path] = def.ID
	d.mu.Unlock()
	return def.ID, true
}

func isPluginFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
