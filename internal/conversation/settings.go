package conversation

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SettingsLoader fetches the resolved settings for a workspace from the
// backing store.
type SettingsLoader interface {
	LoadSettingsRow(ctx context.Context, workspaceID uint) (*ResolvedSettings, error)
}

// SettingsCache is a read-through cache with TTL expiry. It is the only
// mutable state shared across conversations; singleflight collapses
// concurrent misses for the same workspace into one load.
type SettingsCache struct {
	loader SettingsLoader
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[uint]cachedSettings
	group   singleflight.Group
}

type cachedSettings struct {
	settings *ResolvedSettings
	loadedAt time.Time
}

func NewSettingsCache(loader SettingsLoader, ttl time.Duration) *SettingsCache {
	return &SettingsCache{
		loader:  loader,
		ttl:     ttl,
		entries: map[uint]cachedSettings{},
	}
}

// Resolve returns the workspace settings, loading on miss or expiry.
func (c *SettingsCache) Resolve(ctx context.Context, workspaceID uint) (*ResolvedSettings, error) {
	c.mu.RLock()
	entry, ok := c.entries[workspaceID]
	c.mu.RUnlock()
	if ok && time.Since(entry.loadedAt) < c.ttl {
		return entry.settings, nil
	}

	result, err, _ := c.group.Do(strconv.FormatUint(uint64(workspaceID), 10), func() (interface{}, error) {
		settings, err := c.loader.LoadSettingsRow(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[workspaceID] = cachedSettings{settings: settings, loadedAt: time.Now()}
		c.mu.Unlock()
		return settings, nil
	})
	if err != nil {
		// Serve a stale entry over failing the conversation.
		if ok {
			return entry.settings, nil
		}
		return nil, err
	}
	return result.(*ResolvedSettings), nil
}

// Invalidate drops a workspace's cached settings after an update.
func (c *SettingsCache) Invalidate(workspaceID uint) {
	c.mu.Lock()
	delete(c.entries, workspaceID)
	c.mu.Unlock()
}
