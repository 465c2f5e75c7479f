package redis

import (
	"context"
	"errors"
	"time"

	"github.com/learnloop/learnloop-hub/internal/application/query"
)

// StatsCache caches assembled user stats DTOs. Implements query.StatsCache.
//
// The stats read path aggregates five tables; a short TTL keeps dashboard
// polling off the database without letting ranks go visibly stale.
type StatsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewStatsCache creates a stats cache with the given TTL.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{cache: cache, ttl: ttl}
}

// GetStats returns the cached stats for a user, or (nil, nil) on a miss.
func (s *StatsCache) GetStats(ctx context.Context, userID string) (*query.UserStatsDTO, error) {
	var dto query.UserStatsDTO
	err := s.cache.Get(ctx, StatsKey(userID), &dto)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &dto, nil
}

// SetStats stores the stats for a user.
func (s *StatsCache) SetStats(ctx context.Context, userID string, dto *query.UserStatsDTO) error {
	if dto == nil {
		return nil
	}
	return s.cache.Set(ctx, StatsKey(userID), dto, s.ttl)
}

// Invalidate drops the cached stats for a user. Called after writes that
// change points so the next read reflects them immediately.
func (s *StatsCache) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Delete(ctx, StatsKey(userID))
}
