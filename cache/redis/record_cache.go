// Package redis provides a Redis-backed RecordCache for deployments
// where multiple processes front the same realm store.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/realm/cache"
)

// RecordCache stores marshaled records in Redis under a key prefix.
type RecordCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ cache.RecordCache = (*RecordCache)(nil)

// NewRecordCache creates a RecordCache on the given client. Entries
// expire after ttl.
func NewRecordCache(client *redis.Client, prefix string, ttl time.Duration) *RecordCache {
	return &RecordCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RecordCache) key(collection, id string) string {
	return c.prefix + ":record:" + collection + ":" + id
}

func (c *RecordCache) Get(ctx context.Context, collection, id string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.key(collection, id)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("collection", collection).Msg("redis record cache read failed")
		return nil, false
	}
	return raw, true
}

func (c *RecordCache) Set(ctx context.Context, collection, id string, raw []byte) {
	if err := c.client.Set(ctx, c.key(collection, id), raw, c.ttl).Err(); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("collection", collection).Msg("redis record cache write failed")
	}
}

func (c *RecordCache) Delete(ctx context.Context, collection, id string) {
	if err := c.client.Del(ctx, c.key(collection, id)).Err(); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("collection", collection).Msg("redis record cache delete failed")
	}
}
