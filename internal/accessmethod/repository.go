package accessmethod

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wadahiro/apiaccess/internal/config"
)

// FileRepository keeps a Store in sync with the access methods of a TOML
// settings file.
type FileRepository struct {
	path     string
	profile  string
	store    *Store
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewFileRepository loads the access methods of path (and of the named
// profile, if any) into a new Store.
func NewFileRepository(path, profile string) (*FileRepository, error) {
	r := &FileRepository{
		path:     config.ExpandTilde(path),
		profile:  profile,
		debounce: 500 * time.Millisecond,
	}
	methods, err := r.read()
	if err != nil {
		return nil, err
	}
	store, err := NewStore(methods)
	if err != nil {
		return nil, err
	}
	r.store = store
	return r, nil
}

// Path returns the settings file path.
func (r *FileRepository) Path() string {
	return r.path
}

// Store returns the store backing the repository.
func (r *FileRepository) Store() *Store {
	return r.store
}

// All implements DataSource.
func (r *FileRepository) All() []Method {
	return r.store.All()
}

// Reload re-reads the file. On error the store keeps its previous contents.
func (r *FileRepository) Reload() error {
	methods, err := r.read()
	if err != nil {
		return err
	}
	return r.store.Replace(methods)
}

func (r *FileRepository) read() ([]Method, error) {
	app, err := config.LoadConfig(r.path)
	if err != nil {
		return nil, err
	}
	var profile *config.Profile
	if r.profile != "" {
		p, ok := app.GetProfile(r.profile)
		if !ok {
			return nil, fmt.Errorf("profile not found: %s", r.profile)
		}
		profile = &p
	}
	return FromSettings(config.Merge(app, profile, nil).AccessMethods)
}

// Watch reloads the store whenever the settings file is written, until ctx
// is done. The parent directory is watched so editors that replace the file
// by renaming are picked up too.
func (r *FileRepository) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(r.path), err)
	}

	r.mu.Lock()
	r.watcher = watcher
	r.mu.Unlock()

	go r.watchLoop(ctx, watcher)
	return nil
}

func (r *FileRepository) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		watcher.Close()
	}()

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(r.debounce, func() {
				storeLogger.Debug("Detected change, reloading...", "file", target)
				if err := r.Reload(); err != nil {
					storeLogger.Warn("Ignoring invalid settings change", "file", target, "error", err)
					return
				}
				storeLogger.Info("Access methods reloaded", "count", len(r.store.All()))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			storeLogger.Error("Watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (r *FileRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

var _ DataSource = (*FileRepository)(nil)
