package repository

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the key/value store used to cache group documents. db.RedisDB
// implements it.
type Cache interface {
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetCache(ctx context.Context, key string, dest interface{}) error
	DeleteCache(ctx context.Context, key string) error
}

// cachedGroupRepository reads groups through the cache and drops the cached
// copy on every write. Cache failures fall back to the underlying store.
type cachedGroupRepository struct {
	GroupRepository
	cache Cache
	ttl   time.Duration
}

func NewCachedGroupRepository(next GroupRepository, cache Cache, ttl time.Duration) GroupRepository {
	return &cachedGroupRepository{GroupRepository: next, cache: cache, ttl: ttl}
}

func groupCacheKey(id string) string {
	return "group:" + id
}

func (r *cachedGroupRepository) FindByID(ctx context.Context, id string) (*Group, error) {
	var cached Group
	if err := r.cache.GetCache(ctx, groupCacheKey(id), &cached); err == nil && cached.ID != "" {
		normalizeGroup(&cached)
		return &cached, nil
	}

	group, err := r.GroupRepository.FindByID(ctx, id)
	if err != nil || group == nil {
		return group, err
	}
	if err := r.cache.SetCache(ctx, groupCacheKey(id), group, r.ttl); err != nil {
		slog.Warn("group cache write failed", "group_id", id, "error", err)
	}
	return group, nil
}

func (r *cachedGroupRepository) Update(ctx context.Context, group *Group) error {
	if err := r.GroupRepository.Update(ctx, group); err != nil {
		return err
	}
	r.invalidate(ctx, group.ID)
	return nil
}

func (r *cachedGroupRepository) Delete(ctx context.Context, id string) error {
	if err := r.GroupRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedGroupRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.DeleteCache(ctx, groupCacheKey(id)); err != nil {
		slog.Warn("group cache invalidation failed", "group_id", id, "error", err)
	}
}
