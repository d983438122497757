// Package cache is the durable local mirror of the category store. It is a
// cache, not a source of truth: Load never fails, and anything it cannot read
// is treated as an empty store and logged.
package cache

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/monitoring"
)

// Key is the storage key the snapshot lives under.
const Key = "categories"

// Cache persists whole store snapshots.
type Cache interface {
	// Save overwrites the stored snapshot.
	Save(snap dataset.Snapshot) error
	// Load returns the last saved snapshot, or an empty one.
	Load() dataset.Snapshot
}

func encode(snap dataset.Snapshot) ([]byte, error) {
	if snap.Categories == nil {
		snap.Categories = []dataset.Category{}
	}
	return json.Marshal(snap)
}

// decode parses a stored blob. Besides the snapshot object it accepts the
// older {"<category>": [images...]} map, whose category order is lost.
func decode(data []byte, source string) dataset.Snapshot {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return dataset.Snapshot{}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		monitoring.Logf("cache: ignoring unreadable %s: %v", source, err)
		return dataset.Snapshot{}
	}
	if _, ok := probe["categories"]; ok {
		var snap dataset.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return snap
		}
		// a legacy map may hold a category literally named "categories"
	}

	var legacy map[string][]dataset.Image
	if err := json.Unmarshal(data, &legacy); err != nil {
		monitoring.Logf("cache: ignoring unreadable %s: %v", source, err)
		return dataset.Snapshot{}
	}
	snap := dataset.Snapshot{Categories: make([]dataset.Category, 0, len(legacy))}
	for _, name := range slices.Sorted(maps.Keys(legacy)) {
		snap.Categories = append(snap.Categories, dataset.Category{Name: name, Images: legacy[name]})
	}
	return snap
}

// MemoryCache keeps the encoded snapshot in memory. It is used by tests and
// when the CLI runs without a cache.
type MemoryCache struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryCache returns an empty memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Save(snap dataset.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.saves++
	return nil
}

func (c *MemoryCache) Load() dataset.Snapshot {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	return decode(data, "memory cache")
}

// Saves returns how many times Save succeeded.
func (c *MemoryCache) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}
