package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
)

type cacheItem struct {
	entry     cache.Entry
	expiresAt time.Time
}

// recordCacheInMemory — TTL-кэш на map под RWMutex для single-instance запуска.
type recordCacheInMemory struct {
	mu    sync.RWMutex
	items map[string]cacheItem
}

// NewRecordCache возвращает in-memory реализацию RecordCache.
func NewRecordCache() cache.RecordCache {
	return &recordCacheInMemory{items: make(map[string]cacheItem)}
}

// Get возвращает запись по ключу. Просроченные записи удаляются лениво.
func (c *recordCacheInMemory) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return cache.Entry{}, false, nil
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		// Перепроверяем под write-lock: запись могли успеть заменить.
		if current, still := c.items[key]; still && time.Now().After(current.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return cache.Entry{}, false, nil
	}
	return item.entry, true, nil
}

// Put публикует запись с заданным TTL, заменяя предыдущую по тому же ключу.
func (c *recordCacheInMemory) Put(_ context.Context, key string, entry cache.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{entry: entry, expiresAt: time.Now().Add(ttl)}
	return nil
}

// InvalidateAll одним махом сбрасывает все ключи.
func (c *recordCacheInMemory) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem)
	return nil
}

var _ cache.RecordCache = (*recordCacheInMemory)(nil)
