package cache

import (
	"sync"

	"swiftparcel-backend/internal/models"
)

// LocationCache holds the latest known position per driver. It is the only
// place positions live; nothing is persisted. All access goes through the
// mutex so snapshot reads never observe a half-written entry.
type LocationCache struct {
	mu        sync.RWMutex
	positions map[string]models.DriverPosition
}

func NewLocationCache() *LocationCache {
	return &LocationCache{
		positions: make(map[string]models.DriverPosition),
	}
}

// Upsert overwrites the entry for pos.DriverID. The connection that wrote
// last is recorded so a disconnect of a stale connection can't mark a driver
// offline after they reconnected elsewhere.
func (c *LocationCache) Upsert(pos models.DriverPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos.Online = true
	c.positions[pos.DriverID] = pos
}

// Get returns the entry for a driver, if one exists.
func (c *LocationCache) Get(driverID string) (models.DriverPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.positions[driverID]
	return pos, ok
}

// Snapshot returns a copy of every entry. The copy is taken under the read
// lock, so it is consistent with all updates applied before the call.
func (c *LocationCache) Snapshot() []models.DriverPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.DriverPosition, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, pos)
	}
	return out
}

// MarkOffline flags a driver's entry offline if connID is still the recorded
// writer. The entry is kept so the last known position stays visible.
func (c *LocationCache) MarkOffline(driverID, connID string, at int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.positions[driverID]
	if !ok || pos.ConnectionID != connID {
		return
	}
	pos.Online = false
	pos.Timestamp = at
	c.positions[driverID] = pos
}

// Len returns the number of cached drivers.
func (c *LocationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.positions)
}
