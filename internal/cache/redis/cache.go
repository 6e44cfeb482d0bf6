package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/vinyl/internal/cache"
)

const (
	keyPrefix  = "vinyl:catalog:"
	versionKey = keyPrefix + "ver"
)

// recordCacheRedis — RecordCache поверх Redis для запуска в несколько инстансов.
//
// Грубая инвалидация реализована через счётчик поколения: номер текущего
// поколения вшивается в каждый ключ, InvalidateAll атомарно инкрементирует
// счётчик (O(1) вместо SCAN+DEL), а записи старого поколения умирают по TTL.
type recordCacheRedis struct {
	client *redis.Client
}

// NewRecordCache создаёт Redis-реализацию RecordCache.
func NewRecordCache(client *redis.Client) cache.RecordCache {
	return &recordCacheRedis{client: client}
}

// Open подключается к Redis и проверяет доступность.
func Open(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *recordCacheRedis) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	fullKey, err := c.entryKey(ctx, key)
	if err != nil {
		return cache.Entry{}, false, err
	}

	data, err := c.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("cache get: %w", err)
	}

	var entry cache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Повреждённую запись считаем промахом: её перезапишет следующий Put.
		return cache.Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *recordCacheRedis) Put(ctx context.Context, key string, entry cache.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	fullKey, err := c.entryKey(ctx, key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, fullKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *recordCacheRedis) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (c *recordCacheRedis) entryKey(ctx context.Context, key string) (string, error) {
	ver, err := c.client.Get(ctx, versionKey).Result()
	if errors.Is(err, redis.Nil) {
		ver = "0"
	} else if err != nil {
		return "", fmt.Errorf("cache version: %w", err)
	}
	return keyPrefix + "v" + ver + ":" + key, nil
}

var _ cache.RecordCache = (*recordCacheRedis)(nil)
