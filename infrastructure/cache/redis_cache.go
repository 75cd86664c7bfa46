package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisUnreadCache keeps unread-count snapshots in a Redis hash per
// recipient so a restart does not cold-start every counts query. Picked
// over MemUnreadCache when REDIS_ADDR is configured. All failures
// degrade to a cache miss.
type RedisUnreadCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisUnreadCache(redisAddr string, ttl time.Duration, log *zap.Logger) *RedisUnreadCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	return &RedisUnreadCache{
		client: rdb,
		ttl:    ttl,
		log:    log,
	}
}

func unreadKey(recipientId string) string {
	return "unread:" + recipientId
}

func (c *RedisUnreadCache) Get(ctx context.Context, recipientId string) (map[string]int, bool) {
	values, err := c.client.HGetAll(ctx, unreadKey(recipientId)).Result()
	if err != nil {
		c.log.Warn("redis HGETALL failed", zap.Error(err))
		return nil, false
	}
	if len(values) == 0 {
		return nil, false
	}

	counts := make(map[string]int, len(values))
	for senderId, raw := range values {
		if senderId == "_" {
			continue
		}
		count, err := strconv.Atoi(raw)
		if err != nil {
			return nil, false
		}
		counts[senderId] = count
	}
	return counts, true
}

func (c *RedisUnreadCache) Set(ctx context.Context, recipientId string, counts map[string]int) {
	key := unreadKey(recipientId)

	// Marker field distinguishes "cached empty" from "not cached".
	fields := map[string]any{"_": "0"}
	for senderId, count := range counts {
		fields[senderId] = strconv.Itoa(count)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("redis cache set failed", zap.Error(err))
	}
}

func (c *RedisUnreadCache) Invalidate(ctx context.Context, recipientId string) {
	if err := c.client.Del(ctx, unreadKey(recipientId)).Err(); err != nil {
		c.log.Warn("redis cache invalidate failed", zap.Error(err))
	}
}

func (c *RedisUnreadCache) Close() error {
	return c.client.Close()
}
