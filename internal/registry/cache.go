package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lofthq/loft-assistant/internal/apps"
	"github.com/lofthq/loft-assistant/internal/store"
)

// ConnectionCache is a TTL-based in-memory cache with stale-while-revalidate
// for connected-account lookups. Uses sync.Map for lock-free reads on the hot
// path. A nil connection is cached too (negative cache: app not connected).
type ConnectionCache struct {
	store sync.Map // map[string]*connCacheEntry
	ttl   time.Duration
}

type connCacheEntry struct {
	conn       *store.Connection
	expiresAt  time.Time
	refreshing atomic.Bool
}

// ConnCacheGetResult holds the result of a cache lookup.
type ConnCacheGetResult struct {
	Conn         *store.Connection // nil if not connected (negative cache)
	Hit          bool              // true if a value was found (fresh or stale)
	NeedsRefresh bool              // true if expired — caller should refresh in background
}

// NewConnectionCache creates a cache with the given TTL.
func NewConnectionCache(ttl time.Duration) *ConnectionCache {
	return &ConnectionCache{ttl: ttl}
}

func connCacheKey(workspaceID, memberID string, appID apps.AppID) string {
	return workspaceID + ":" + memberID + ":" + string(appID)
}

// Get performs a non-blocking cache lookup.
// Returns stale entries with NeedsRefresh=true when expired.
func (c *ConnectionCache) Get(workspaceID, memberID string, appID apps.AppID) ConnCacheGetResult {
	val, ok := c.store.Load(connCacheKey(workspaceID, memberID, appID))
	if !ok {
		return ConnCacheGetResult{Hit: false}
	}

	entry := val.(*connCacheEntry)
	if time.Now().Before(entry.expiresAt) {
		return ConnCacheGetResult{Conn: entry.conn, Hit: true}
	}

	// Stale hit — only one goroutine wins the CAS and refreshes.
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return ConnCacheGetResult{
		Conn:         entry.conn,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a connection with a fresh TTL. Passing nil stores a negative
// cache entry.
func (c *ConnectionCache) Set(workspaceID, memberID string, appID apps.AppID, conn *store.Connection) {
	c.store.Store(connCacheKey(workspaceID, memberID, appID), &connCacheEntry{
		conn:      conn,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *ConnectionCache) Delete(workspaceID, memberID string, appID apps.AppID) {
	c.store.Delete(connCacheKey(workspaceID, memberID, appID))
}
