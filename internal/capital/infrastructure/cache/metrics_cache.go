// Package cache 基金口径汇总的 Redis 读缓存适配
package cache

import (
	"context"
	"encoding/json"
	"time"

	pkgcache "github.com/wyfcoding/fundcapital/pkg/cache"
)

// MetricsCache 基于 Redis 的口径汇总缓存，区分命中与未命中
type MetricsCache struct {
	redis *pkgcache.RedisCache
}

// NewMetricsCache 创建口径汇总缓存
func NewMetricsCache(redis *pkgcache.RedisCache) *MetricsCache {
	return &MetricsCache{redis: redis}
}

// GetJSON 读取并反序列化缓存值，返回是否命中
func (c *MetricsCache) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	val, err := c.redis.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if val == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 序列化并写入缓存
func (c *MetricsCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	return c.redis.SetJSON(ctx, key, v, ttl)
}

// Delete 删除缓存键
func (c *MetricsCache) Delete(ctx context.Context, keys ...string) error {
	return c.redis.Delete(ctx, keys...)
}
