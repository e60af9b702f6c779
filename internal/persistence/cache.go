// Package persistence keeps executed flows around for later steps: a cache
// holding the most recent flow and a store of named flows shared across
// scenarios.
package persistence

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DanielPopoola/openapi-testflow/internal/clock"
	"github.com/DanielPopoola/openapi-testflow/internal/domain"
)

// Cache holds the latest flow only.
type Cache struct {
	file   *JSONFile
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	deleted bool
}

func NewCache(path string, c clock.Clock, logger *slog.Logger) *Cache {
	return &Cache{
		file:   NewJSONFile(path),
		clock:  c,
		logger: logger,
	}
}

// Save replaces the cached flow with snap.
func (c *Cache) Save(ctx context.Context, snap domain.Snapshot) error {
	rec := snap.Record(c.clock.Now())

	if err := c.file.Write(ctx, rec); err != nil {
		return err
	}

	c.mu.Lock()
	c.deleted = false
	c.mu.Unlock()

	c.logger.Info("flow cached", "path", c.file.Path(), "scenario", rec.Scenario, "async", rec.IsAsync())
	return nil
}

// Load returns the cached flow.
func (c *Cache) Load(ctx context.Context) (domain.FlowRecord, error) {
	var rec domain.FlowRecord
	found, err := c.file.Read(ctx, &rec)
	if err != nil {
		return domain.FlowRecord{}, err
	}
	if !found {
		return domain.FlowRecord{}, domain.NewPersistenceReadMissError("cache", "", c.file.Path())
	}
	return rec, nil
}

// ReadField looks up fields of the cached flow. keyMap maps each result key
// to the data field it is read from.
func (c *Cache) ReadField(ctx context.Context, section string, keyMap map[string]string) (map[string]any, error) {
	rec, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	return pick(rec, "cache", section, keyMap)
}

// Delete removes the cache file. Repeated calls in a process are no-ops.
func (c *Cache) Delete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted {
		return nil
	}
	if err := c.file.Remove(ctx); err != nil {
		return err
	}
	c.deleted = true
	c.logger.Debug("cache deleted", "path", c.file.Path())
	return nil
}

func pick(rec domain.FlowRecord, target, section string, keyMap map[string]string) (map[string]any, error) {
	data, ok := rec.SectionData(section)
	if !ok {
		return nil, domain.NewPersistenceReadMissError(target, section, "section")
	}
	out := make(map[string]any, len(keyMap))
	for alias, field := range keyMap {
		v, ok := data[field]
		if !ok {
			return nil, domain.NewPersistenceReadMissError(target, section, field)
		}
		out[alias] = v
	}
	return out, nil
}
