// Copyright (c) 2026 AetherCore contributors.

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/aethercore/internal/core/entity"
	"github.com/taibuivan/aethercore/internal/platform/constants"
)

// cacheRepository is an optional read-through caching decorator in front of
// any [Repository]. Writes always go to the inner repository first — it
// remains the sole authority on the version check — and the cache is only
// ever a hint: a miss, a stale entry, or a Redis outage all fall back to the
// inner repository transparently.
type cacheRepository struct {
	Repository
	client *redis.Client
	ttl    time.Duration
}

// NewCacheRepository wraps inner with a Redis read-through cache. ttl is the
// per-entry expiry; zero means entries never expire on their own (only
// explicit invalidation on write/delete removes them).
func NewCacheRepository(inner Repository, client *redis.Client, ttl time.Duration) Repository {
	return &cacheRepository{Repository: inner, client: client, ttl: ttl}
}

func (r *cacheRepository) cacheKey(id string) string {
	return constants.RedisPrefixEntity + id
}

func (r *cacheRepository) Load(ctx context.Context, id string) (*entity.Entity, error) {
	if e, ok := r.getCached(ctx, id); ok {
		return e, nil
	}

	e, err := r.Repository.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	r.setCached(ctx, e)
	return e, nil
}

func (r *cacheRepository) LoadBulk(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	result := make(map[string]*entity.Entity, len(ids))
	var misses []string

	for _, id := range ids {
		if e, ok := r.getCached(ctx, id); ok {
			result[id] = e
		} else {
			misses = append(misses, id)
		}
	}

	if len(misses) == 0 {
		return result, nil
	}

	loaded, err := r.Repository.LoadBulk(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, e := range loaded {
		result[id] = e
		r.setCached(ctx, e)
	}
	return result, nil
}

func (r *cacheRepository) Save(ctx context.Context, e *entity.Entity) error {
	if err := r.Repository.Save(ctx, e); err != nil {
		return err
	}
	r.setCached(ctx, e)
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, id string) error {
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cacheRepository) Clear(ctx context.Context) error {
	if err := r.Repository.Clear(ctx); err != nil {
		return err
	}
	// Best-effort: the underlying store is now empty but per-key cache
	// entries are not individually enumerable here; they expire on ttl or
	// are invalidated the next time each id is written or deleted.
	return nil
}

// getCached reports a cache hit only on a clean, decodable read. A Redis
// miss (redis.Nil), a Redis outage, or a decode failure all fall through to
// the inner repository identically — the cache is a hint, never load-bearing.
func (r *cacheRepository) getCached(ctx context.Context, id string) (*entity.Entity, bool) {
	raw, err := r.client.Get(ctx, r.cacheKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var e entity.Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	return &e, true
}

func (r *cacheRepository) setCached(ctx context.Context, e *entity.Entity) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	// Errors are intentionally swallowed: the cache is a hint, never the
	// system of record, so a failed write just means the next read costs a
	// round-trip to the inner repository instead of corrupting anything.
	r.client.Set(ctx, r.cacheKey(e.ID), raw, r.ttl)
}

func (r *cacheRepository) invalidate(ctx context.Context, id string) {
	r.client.Del(ctx, r.cacheKey(id))
}
