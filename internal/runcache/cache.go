// Package runcache resolves file paths to parsed, indexed runs. Parsing a
// multi-gigabyte mzML file is expensive, so each path is loaded at most
// once per process: a per-path singleflight lock collapses concurrent first
// queries into a single parse, and successful loads are kept in an LRU
// bounded by configuration. A failed load is never cached, so a later
// retry re-attempts it.
package runcache

import (
	"container/list"
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mzscope/mzscope/internal/index"
	"github.com/mzscope/mzscope/internal/mzml"
	apperrors "github.com/mzscope/mzscope/pkg/errors"
	"github.com/mzscope/mzscope/pkg/metrics"
)

// Entry is one resolved run: the raw spectra and the index built over
// them. Both are immutable after load and safe for concurrent readers.
type Entry struct {
	Path    string
	Spectra []mzml.Spectrum
	Index   *index.RunIndex
}

// Loader parses a run from disk. The default is mzml.ReadFile; tests
// substitute synthetic runs.
type Loader func(path string) (*mzml.Run, error)

// Cache is the process-wide path-to-run mapping.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	evictList  *list.List

	group   singleflight.Group
	load    Loader
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache. maxEntries bounds how many parsed runs are held at
// once; 0 disables eviction. m may be nil.
func New(load Loader, maxEntries int, m *metrics.Metrics) *Cache {
	if load == nil {
		load = mzml.ReadFile
	}
	return &Cache{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		evictList:  list.New(),
		load:       load,
		metrics:    m,
		logger:     slog.Default().With("component", "run-cache"),
	}
}

// Resolve returns the cached entry for path, loading and indexing the run
// on first access. The path must exist at call time; a missing path fails
// before any load attempt.
func (c *Cache) Resolve(ctx context.Context, path string) (*Entry, error) {
	if entry := c.get(path); entry != nil {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		return entry, nil
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	v, err, shared := c.group.Do(path, func() (any, error) {
		// A concurrent caller may have populated the entry while this
		// goroutine waited on the flight lock.
		if entry := c.get(path); entry != nil {
			return entry, nil
		}
		return c.loadAndIndex(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("load shared between concurrent requests", "path", path)
	}
	return v.(*Entry), nil
}

func (c *Cache) loadAndIndex(ctx context.Context, path string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, apperrors.Newf(apperrors.ErrRunNotFound, http.StatusNotFound, "file not found: %s", path)
		case os.IsPermission(err):
			return nil, apperrors.Newf(apperrors.ErrPermissionDenied, http.StatusForbidden, "cannot read %s", path)
		default:
			return nil, apperrors.Newf(apperrors.ErrLoadFailed, http.StatusInternalServerError, "stat %s: %v", path, err)
		}
	}

	start := time.Now()
	run, err := c.load(path)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RunLoadsTotal.WithLabelValues("error").Inc()
		}
		c.logger.Error("run load failed", "path", path, "error", err)
		return nil, apperrors.Newf(apperrors.ErrLoadFailed, http.StatusInternalServerError, "parsing %s: %v", path, err)
	}

	idx := index.Build(run.Spectra)
	entry := &Entry{Path: path, Spectra: run.Spectra, Index: idx}
	c.put(path, entry)

	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RunLoadsTotal.WithLabelValues("ok").Inc()
		c.metrics.RunLoadDuration.Observe(elapsed.Seconds())
		c.metrics.SpectraParsedTotal.Add(float64(len(run.Spectra)))
	}
	c.logger.Info("run loaded",
		"path", path,
		"spectra", len(run.Spectra),
		"ms1_scans", idx.MS1Count(),
		"ms2_scans", idx.MS2Count(),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return entry, nil
}

// get returns the entry for path and refreshes its recency, or nil.
func (c *Cache) get(path string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[path]; ok {
		c.evictList.MoveToFront(el)
		return el.Value.(*Entry)
	}
	return nil
}

// put stores an entry and evicts the least recently used runs beyond the
// configured bound.
func (c *Cache) put(path string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.evictList.MoveToFront(el)
		el.Value = entry
		return
	}
	c.items[path] = c.evictList.PushFront(entry)

	if c.maxEntries > 0 {
		for c.evictList.Len() > c.maxEntries {
			el := c.evictList.Back()
			if el == nil {
				break
			}
			evicted := el.Value.(*Entry)
			c.evictList.Remove(el)
			delete(c.items, evicted.Path)
			if c.metrics != nil {
				c.metrics.CacheEvictionsTotal.Inc()
			}
			c.logger.Info("run evicted", "path", evicted.Path)
		}
	}
	if c.metrics != nil {
		c.metrics.LoadedRuns.Set(float64(c.evictList.Len()))
	}
}

// Len returns the number of cached runs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
