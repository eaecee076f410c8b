package runcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzscope/mzscope/internal/mzml"
	apperrors "github.com/mzscope/mzscope/pkg/errors"
)

// countingLoader returns a fixed synthetic run and counts invocations.
type countingLoader struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (l *countingLoader) load(path string) (*mzml.Run, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	return &mzml.Run{Spectra: []mzml.Spectrum{
		{MSLevel: 1, RetentionTime: 10, MZs: []float64{100}, Intensities: []float64{5}},
		{MSLevel: 1, RetentionTime: 20, MZs: []float64{100}, Intensities: []float64{7}},
		{MSLevel: 2, RetentionTime: 21, HasPrecursor: true, PrecursorMZ: 500},
	}}, nil
}

// touch creates an empty file so the cache's existence check passes.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))
	return path
}

func TestResolveLoadsOnce(t *testing.T) {
	loader := &countingLoader{}
	c := New(loader.load, 0, nil)
	path := touch(t, t.TempDir(), "run.mzML")

	first, err := c.Resolve(context.Background(), path)
	require.NoError(t, err)
	second, err := c.Resolve(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, int64(1), loader.calls.Load(), "second resolve must not reload")
	assert.Same(t, first, second)
	assert.Equal(t, 2, first.Index.MS1Count())
	assert.Equal(t, first.Index.TICIntensities, second.Index.TICIntensities)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestResolveMissingPath(t *testing.T) {
	loader := &countingLoader{}
	c := New(loader.load, 0, nil)

	_, err := c.Resolve(context.Background(), filepath.Join(t.TempDir(), "absent.mzML"))
	assert.ErrorIs(t, err, apperrors.ErrRunNotFound)
	assert.Equal(t, int64(0), loader.calls.Load(), "existence is checked before any load attempt")
}

func TestResolveLoadFailureNotCached(t *testing.T) {
	loader := &countingLoader{err: errors.New("truncated file")}
	c := New(loader.load, 0, nil)
	path := touch(t, t.TempDir(), "corrupt.mzML")

	_, err := c.Resolve(context.Background(), path)
	assert.ErrorIs(t, err, apperrors.ErrLoadFailed)

	// The failure is not cached: once the file is fixed, resolution works.
	loader.err = nil
	entry, err := c.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loader.calls.Load())
	assert.Equal(t, 2, entry.Index.MS1Count())
}

func TestLRUEviction(t *testing.T) {
	loader := &countingLoader{}
	c := New(loader.load, 2, nil)
	dir := t.TempDir()

	a := touch(t, dir, "a.mzML")
	b := touch(t, dir, "b.mzML")
	d := touch(t, dir, "c.mzML")

	ctx := context.Background()
	_, err := c.Resolve(ctx, a)
	require.NoError(t, err)
	_, err = c.Resolve(ctx, b)
	require.NoError(t, err)
	_, err = c.Resolve(ctx, d)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())

	// a was least recently used and must reload.
	before := loader.calls.Load()
	_, err = c.Resolve(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, before+1, loader.calls.Load())
}

func TestUnboundedWhenMaxEntriesZero(t *testing.T) {
	loader := &countingLoader{}
	c := New(loader.load, 0, nil)
	dir := t.TempDir()

	ctx := context.Background()
	for _, name := range []string{"a.mzML", "b.mzML", "c.mzML", "d.mzML"} {
		_, err := c.Resolve(ctx, touch(t, dir, name))
		require.NoError(t, err)
	}
	assert.Equal(t, 4, c.Len())
}

func TestConcurrentFirstLoadsShareOneParse(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond}
	c := New(loader.load, 0, nil)
	path := touch(t, t.TempDir(), "big.mzML")

	const goroutines = 8
	var wg sync.WaitGroup
	entries := make([]*Entry, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i], errs[i] = c.Resolve(context.Background(), path)
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, entries[i])
	}
	assert.Equal(t, int64(1), loader.calls.Load(), "concurrent first queries must share a single load")
}
