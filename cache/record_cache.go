// Package cache provides a read-through cache for by-id record loads,
// layered in front of a storage.Store. Writes invalidate eagerly;
// DeleteAll cannot know which ids it removed, so those entries are left
// to expire with the TTL.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"

	"go.pilab.hu/realm/storage"
)

// RecordCache stores marshaled records keyed by (collection, id).
type RecordCache interface {
	Get(ctx context.Context, collection, id string) ([]byte, bool)
	Set(ctx context.Context, collection, id string, raw []byte)
	Delete(ctx context.Context, collection, id string)
}

// MemoryCache is a TTL-bounded in-process RecordCache.
type MemoryCache struct {
	cache *ttlcache.Cache[string, []byte]
}

var _ RecordCache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache whose entries expire after ttl.
// The expiry loop runs until Stop is called.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](ttl),
	)
	go c.Start()
	return &MemoryCache{cache: c}
}

// Stop terminates the expiry loop.
func (c *MemoryCache) Stop() { c.cache.Stop() }

func (c *MemoryCache) Get(_ context.Context, collection, id string) ([]byte, bool) {
	item := c.cache.Get(cacheKey(collection, id))
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *MemoryCache) Set(_ context.Context, collection, id string, raw []byte) {
	c.cache.Set(cacheKey(collection, id), raw, ttlcache.DefaultTTL)
}

func (c *MemoryCache) Delete(_ context.Context, collection, id string) {
	c.cache.Delete(cacheKey(collection, id))
}

func cacheKey(collection, id string) string {
	return collection + "/" + id
}

// CachedStore decorates a Store with a read-through RecordCache on Get.
// Queries always hit the backing store: condition matching against the
// cache would have to replicate store semantics.
type CachedStore struct {
	inner storage.Store
	cache RecordCache
}

var _ storage.Store = (*CachedStore)(nil)

// NewCachedStore wraps inner with the given record cache.
func NewCachedStore(inner storage.Store, cache RecordCache) *CachedStore {
	return &CachedStore{inner: inner, cache: cache}
}

func (s *CachedStore) Get(ctx context.Context, rec storage.Record, id string) error {
	if raw, ok := s.cache.Get(ctx, rec.CollectionName(), id); ok {
		if err := bson.Unmarshal(raw, rec); err == nil {
			log.Ctx(ctx).Debug().
				Str("collection", rec.CollectionName()).
				Str("id", id).
				Msg("record cache hit")
			return nil
		}
		// Undecodable entry: drop it and fall through to the store.
		s.cache.Delete(ctx, rec.CollectionName(), id)
	}
	if err := s.inner.Get(ctx, rec, id); err != nil {
		return err
	}
	if raw, err := bson.Marshal(rec); err == nil {
		s.cache.Set(ctx, rec.CollectionName(), id, raw)
	}
	return nil
}

func (s *CachedStore) Save(ctx context.Context, rec storage.Record) error {
	if err := s.inner.Save(ctx, rec); err != nil {
		return err
	}
	s.cache.Delete(ctx, rec.CollectionName(), rec.RecordID())
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, rec storage.Record) error {
	if err := s.inner.Delete(ctx, rec); err != nil {
		return err
	}
	s.cache.Delete(ctx, rec.CollectionName(), rec.RecordID())
	return nil
}

func (s *CachedStore) PushToList(ctx context.Context, rec storage.Record, field, value string) error {
	if err := s.inner.PushToList(ctx, rec, field, value); err != nil {
		return err
	}
	s.cache.Delete(ctx, rec.CollectionName(), rec.RecordID())
	return nil
}

func (s *CachedStore) FindOne(ctx context.Context, rec storage.Record, q *storage.Query) error {
	return s.inner.FindOne(ctx, rec, q)
}

func (s *CachedStore) FindAll(ctx context.Context, out any, q *storage.Query) error {
	return s.inner.FindAll(ctx, out, q)
}

func (s *CachedStore) DeleteAll(ctx context.Context, collection string, q *storage.Query) error {
	return s.inner.DeleteAll(ctx, collection, q)
}
