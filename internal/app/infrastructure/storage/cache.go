package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
	"twitchtts/internal/app/ports"

	"github.com/maypok86/otter/v2"
)

// Cache is an otter cache that can be mirrored to a JSON file.
type Cache[T any] struct {
	outer *otter.Cache[string, T]

	filePath      string
	flushOnChange bool
	flushMu       sync.Mutex
}

var _ ports.CachePort[bool] = (*Cache[bool])(nil)

type CacheOption func(*cacheOptions)

type cacheOptions struct {
	capacity      int
	ttl           time.Duration
	filePath      string
	flushOnChange bool
}

func WithCapacity(n int) CacheOption {
	return func(o *cacheOptions) { o.capacity = n }
}

// WithTTL expires entries not accessed for ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) CacheOption {
	return func(o *cacheOptions) { o.ttl = ttl }
}

// WithPersistence loads the cache from path and writes it back there.
// With flushOnChange every mutation rewrites the file.
func WithPersistence(path string, flushOnChange bool) CacheOption {
	return func(o *cacheOptions) {
		o.filePath = path
		o.flushOnChange = flushOnChange
	}
}

// NewCache builds the cache and loads the persisted file if there is one.
// A missing file is not an error.
func NewCache[T any](opts ...CacheOption) (*Cache[T], error) {
	o := &cacheOptions{capacity: 64}
	for _, opt := range opts {
		opt(o)
	}

	otterOpts := &otter.Options[string, T]{InitialCapacity: o.capacity}
	if o.ttl > 0 {
		otterOpts.ExpiryCalculator = otter.ExpiryAccessing[string, T](o.ttl)
	}

	c := &Cache[T]{
		outer:         otter.Must(otterOpts),
		filePath:      o.filePath,
		flushOnChange: o.flushOnChange,
	}

	if c.filePath != "" {
		if err := c.loadFromDisk(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", c.filePath, err)
		}
	}

	return c, nil
}

func (c *Cache[T]) Set(key string, val T) {
	c.outer.Set(key, val)
	c.changed()
}

func (c *Cache[T]) Get(key string) (T, bool) {
	return c.outer.GetIfPresent(key)
}

// Keys returns the cached keys in sorted order.
func (c *Cache[T]) Keys() []string {
	keys := make([]string, 0)
	for k := range c.outer.All() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c *Cache[T]) ClearKey(key string) {
	c.outer.Invalidate(key)
	c.changed()
}

func (c *Cache[T]) ClearAll() {
	c.outer.InvalidateAll()
	c.changed()
}

func (c *Cache[T]) changed() {
	if c.flushOnChange {
		_ = c.FlushToDisk()
	}
}

// FlushToDisk writes the cache to its file through a temp file and rename.
// Without persistence it does nothing.
func (c *Cache[T]) FlushToDisk() error {
	if c.filePath == "" {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	cacheData := make(map[string]T)
	for k, v := range c.outer.All() {
		cacheData[k] = v
	}

	data, err := json.MarshalIndent(cacheData, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp := c.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func (c *Cache[T]) loadFromDisk() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	var items map[string]T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	for k, v := range items {
		c.outer.Set(k, v)
	}

	return nil
}
