package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Source lists the placements a Taxonomy is built from.
type Source interface {
	ListPlacements(ctx context.Context) ([]Entry, error)
}

// StaticSource serves a fixed entry list.
type StaticSource []Entry

func (s StaticSource) ListPlacements(context.Context) ([]Entry, error) {
	return []Entry(s), nil
}

// Cache loads the taxonomy once and serves it for the process lifetime.
// A failed load is not cached; the next Get retries.
type Cache struct {
	src    Source
	logger *slog.Logger

	mu  sync.Mutex
	tax atomic.Pointer[Taxonomy]
}

func NewCache(src Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{src: src, logger: logger}
}

// Get returns the cached taxonomy, loading it on first use.
func (c *Cache) Get(ctx context.Context) (*Taxonomy, error) {
	if t := c.tax.Load(); t != nil {
		return t, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.tax.Load(); t != nil {
		return t, nil
	}

	start := time.Now()
	entries, err := c.src.ListPlacements(ctx)
	if err != nil {
		c.logger.Error("taxonomy.load.failed", "error", err)
		return nil, fmt.Errorf("list placements: %w", err)
	}
	t, err := New(entries)
	if err != nil {
		c.logger.Error("taxonomy.index.failed", "error", err)
		return nil, err
	}
	c.tax.Store(t)
	c.logger.Info("taxonomy.load.ok",
		"entries", t.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return t, nil
}

// Warm loads the taxonomy eagerly, typically at process start.
func (c *Cache) Warm(ctx context.Context) error {
	_, err := c.Get(ctx)
	return err
}
