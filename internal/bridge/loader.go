package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wadahiro/apiaccess/internal/clock"
	"github.com/wadahiro/apiaccess/internal/log"
)

var logger = log.For(log.ComponentBridge)

var (
	// ErrNoConfiguration is returned by Load when nothing is cached and
	// nothing could be fetched.
	ErrNoConfiguration = errors.New("no bridge configuration available")
	// ErrNoBridges is returned when a fetch succeeded but offered no usable bridge.
	ErrNoBridges = errors.New("no usable bridges")
)

// Loader hands out bridge parameters on demand.
type Loader interface {
	// Load returns the cached configuration or fetches a fresh one.
	Load(ctx context.Context) (Configuration, error)
	// ReloadConfiguration invalidates the cache and fetches anew.
	ReloadConfiguration(ctx context.Context) error
}

type cacheEntry struct {
	Config    Configuration `json:"config"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// CachingLoader is a Loader backed by a Source. The cached value is kept in
// memory and, when a cache file is set, on disk.
type CachingLoader struct {
	source    Source
	selector  Selector
	clock     clock.Clock
	ttl       time.Duration
	cacheFile string

	mu     sync.Mutex
	cached *cacheEntry
}

// Option configures a CachingLoader.
type Option func(*CachingLoader)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(l *CachingLoader) {
		l.clock = c
	}
}

// WithTTL sets how long a fetched bridge is served without refetching.
// Zero means forever.
func WithTTL(ttl time.Duration) Option {
	return func(l *CachingLoader) {
		l.ttl = ttl
	}
}

// WithCacheFile persists the selected bridge to path.
func WithCacheFile(path string) Option {
	return func(l *CachingLoader) {
		l.cacheFile = path
	}
}

// WithSelector replaces the round-robin selector.
func WithSelector(s Selector) Option {
	return func(l *CachingLoader) {
		l.selector = s
	}
}

// NewCachingLoader creates a loader. An existing cache file is read eagerly;
// a missing or corrupt one is ignored.
func NewCachingLoader(source Source, opts ...Option) *CachingLoader {
	l := &CachingLoader{
		source:   source,
		selector: NewRoundRobinSelector(),
		clock:    clock.RealClock{},
		ttl:      time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cacheFile != "" {
		entry, err := readCacheFile(l.cacheFile)
		switch {
		case err == nil:
			l.cached = entry
			logger.Debug("Loaded cached bridge", "bridge", entry.Config.String(), "fetchedAt", entry.FetchedAt)
		case !errors.Is(err, os.ErrNotExist):
			logger.Warn("Ignoring unreadable bridge cache", "file", l.cacheFile, "error", err)
		}
	}
	return l
}

// Load implements Loader. A fresh cached value is returned as is. An expired
// one triggers a fetch and is still served, marked stale, if the fetch fails.
func (l *CachingLoader) Load(ctx context.Context) (Configuration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.fresh(l.cached) {
		return l.cached.Config, nil
	}

	var previous *Configuration
	if l.cached != nil {
		c := l.cached.Config
		previous = &c
	}
	cfg, err := l.fetchLocked(ctx, nil)
	if err == nil {
		return cfg, nil
	}
	if previous != nil {
		logger.Warn("Bridge refresh failed, serving stale configuration", "bridge", previous.String(), "error", err)
		return *previous, nil
	}
	return Configuration{}, fmt.Errorf("%w: %w", ErrNoConfiguration, err)
}

// ReloadConfiguration implements Loader. It prefers a bridge other than the
// one that was in use. When the source is unreachable the old bridge is kept
// but marked stale so the next Load tries to fetch again; when the source has
// no usable bridge the cache is dropped.
func (l *CachingLoader) ReloadConfiguration(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var previous *Configuration
	if l.cached != nil {
		c := l.cached.Config
		previous = &c
	}

	_, err := l.fetchLocked(ctx, previous)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoBridges) || previous == nil {
		l.cached = nil
		l.removeCacheFile()
		return fmt.Errorf("failed to reload bridge configuration: %w", err)
	}
	l.cached = &cacheEntry{Config: *previous}
	return fmt.Errorf("failed to reload bridge configuration: %w", err)
}

// Cached returns the cached configuration, if any, without fetching.
func (l *CachingLoader) Cached() (Configuration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached == nil {
		return Configuration{}, false
	}
	return l.cached.Config, true
}

func (l *CachingLoader) fresh(e *cacheEntry) bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	return l.ttl <= 0 || l.clock.Now().Sub(e.FetchedAt) < l.ttl
}

// fetchLocked must be called with l.mu held.
func (l *CachingLoader) fetchLocked(ctx context.Context, previous *Configuration) (Configuration, error) {
	if l.source == nil {
		return Configuration{}, ErrNoBridges
	}
	candidates, err := l.source.Fetch(ctx)
	if err != nil {
		return Configuration{}, err
	}
	cfg, ok := l.selector(candidates, previous)
	if !ok {
		return Configuration{}, ErrNoBridges
	}

	l.cached = &cacheEntry{Config: cfg, FetchedAt: l.clock.Now()}
	logger.Info("Selected bridge", "bridge", cfg.String(), "candidates", len(candidates))
	if err := l.writeCacheFile(); err != nil {
		logger.Warn("Failed to persist bridge cache", "file", l.cacheFile, "error", err)
	}
	return cfg, nil
}

func (l *CachingLoader) writeCacheFile() error {
	if l.cacheFile == "" || l.cached == nil {
		return nil
	}
	data, err := json.Marshal(l.cached)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.cacheFile), 0o700); err != nil {
		return err
	}
	tmp := l.cacheFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, l.cacheFile)
}

func (l *CachingLoader) removeCacheFile() {
	if l.cacheFile == "" {
		return
	}
	if err := os.Remove(l.cacheFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove bridge cache", "file", l.cacheFile, "error", err)
	}
}

func readCacheFile(path string) (*cacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode bridge cache: %w", err)
	}
	if entry.Config.Address == "" || entry.Config.Port == 0 {
		return nil, errors.New("bridge cache holds no bridge")
	}
	return &entry, nil
}

var _ Loader = (*CachingLoader)(nil)
