package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wadahiro/apiaccess/internal/clock"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestCachingLoader_ServesFromCacheWithinTTL(t *testing.T) {
	clk := clock.NewMockClock(epoch)
	src := newMockSource(testBridges(2), nil)
	l := NewCachingLoader(src, WithClock(clk), WithTTL(time.Minute))
	ctx := context.Background()

	first, err := l.Load(ctx)
	require.NoError(t, err)
	second, err := l.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	src.AssertNumberOfCalls(t, "Fetch", 1)

	clk.Advance(time.Minute)
	_, err = l.Load(ctx)
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestCachingLoader_NoConfiguration(t *testing.T) {
	down := errors.New("relay list unreachable")
	l := NewCachingLoader(newMockSource(nil, down), WithClock(clock.NewMockClock(epoch)))

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConfiguration)
	assert.ErrorIs(t, err, down)

	_, ok := l.Cached()
	assert.False(t, ok)
}

func TestCachingLoader_ServesStaleWhenRefreshFails(t *testing.T) {
	clk := clock.NewMockClock(epoch)
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(testBridges(1), nil).Once()
	src.On("Fetch", mock.Anything).Return(nil, errors.New("down"))
	l := NewCachingLoader(src, WithClock(clk), WithTTL(time.Minute))
	ctx := context.Background()

	cached, err := l.Load(ctx)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	stale, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cached, stale)
	src.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestCachingLoader_ReloadPicksAnotherBridge(t *testing.T) {
	src := newMockSource(testBridges(2), nil)
	l := NewCachingLoader(src, WithClock(clock.NewMockClock(epoch)))
	ctx := context.Background()

	before, err := l.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, l.ReloadConfiguration(ctx))

	after, err := l.Load(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	src.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestCachingLoader_ReloadKeepsStaleOnFetchError(t *testing.T) {
	down := errors.New("down")
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(testBridges(1), nil).Once()
	src.On("Fetch", mock.Anything).Return(nil, down)
	l := NewCachingLoader(src, WithClock(clock.NewMockClock(epoch)), WithTTL(time.Hour))
	ctx := context.Background()

	before, err := l.Load(ctx)
	require.NoError(t, err)

	err = l.ReloadConfiguration(ctx)
	assert.ErrorIs(t, err, down)

	kept, ok := l.Cached()
	require.True(t, ok)
	assert.Equal(t, before, kept)

	// The kept bridge is stale, so the next Load tries the source again
	// before falling back to it.
	got, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, got)
	src.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestCachingLoader_ReloadDropsCacheWhenNoBridges(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "bridge.json")
	src := new(MockSource)
	src.On("Fetch", mock.Anything).Return(testBridges(1), nil).Once()
	src.On("Fetch", mock.Anything).Return(nil, nil)
	l := NewCachingLoader(src, WithClock(clock.NewMockClock(epoch)), WithCacheFile(cacheFile))
	ctx := context.Background()

	_, err := l.Load(ctx)
	require.NoError(t, err)
	require.FileExists(t, cacheFile)

	err = l.ReloadConfiguration(ctx)
	assert.ErrorIs(t, err, ErrNoBridges)

	_, ok := l.Cached()
	assert.False(t, ok)
	assert.NoFileExists(t, cacheFile)

	_, err = l.Load(ctx)
	assert.ErrorIs(t, err, ErrNoConfiguration)
}

func TestCachingLoader_CacheFile(t *testing.T) {
	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "nested", "bridge.json")
	clk := clock.NewMockClock(epoch)
	ctx := context.Background()

	first := NewCachingLoader(newMockSource(testBridges(1), nil), WithClock(clk), WithCacheFile(cacheFile))
	want, err := first.Load(ctx)
	require.NoError(t, err)

	info, err := os.Stat(cacheFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	offline := newMockSource(nil, errors.New("offline"))
	second := NewCachingLoader(offline, WithClock(clk), WithCacheFile(cacheFile))

	got, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	offline.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestCachingLoader_IgnoresCorruptCacheFile(t *testing.T) {
	cacheFile := filepath.Join(t.TempDir(), "bridge.json")
	require.NoError(t, os.WriteFile(cacheFile, []byte("{broken"), 0o600))

	src := newMockSource(testBridges(1), nil)
	l := NewCachingLoader(src, WithClock(clock.NewMockClock(epoch)), WithCacheFile(cacheFile))

	_, ok := l.Cached()
	assert.False(t, ok)

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestCachingLoader_NilSource(t *testing.T) {
	l := NewCachingLoader(nil)
	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoConfiguration)
	assert.ErrorIs(t, err, ErrNoBridges)
}
