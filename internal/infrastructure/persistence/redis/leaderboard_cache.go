package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Sorted set "leaderboard:points" maps userID -> total points, hash
// "leaderboard:info" maps userID -> entry JSON. Rank lookups are O(log N),
// top-N reads O(log N + M). Rebuilt periodically from the users table.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when the leaderboard has no entries.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")

	// ErrUserNotRanked is returned when the user is not in the leaderboard.
	ErrUserNotRanked = errors.New("leaderboard_cache: user not ranked")
)

const (
	keyLeaderboardPoints = PrefixLeaderboard + "points"
	keyLeaderboardInfo   = PrefixLeaderboard + "info"
)

// LeaderboardEntry is a single cached ranking row.
type LeaderboardEntry struct {
	// UserID is the ranked user.
	UserID string `json:"user_id"`

	// DisplayName is the user's display name.
	DisplayName string `json:"display_name"`

	// TotalPoints is the score the ranking orders by.
	TotalPoints int `json:"total_points"`

	// Level is the user's current level.
	Level int `json:"level"`

	// Rank is the 1-based position, populated on reads.
	Rank int64 `json:"rank"`
}

// LeaderboardCache provides ranked reads over cached user points.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a leaderboard cache with the given TTL.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

// Rebuild replaces the cached leaderboard with the given entries.
// Runs in a transactional pipeline so readers never see a half-built set.
func (l *LeaderboardCache) Rebuild(ctx context.Context, entries []LeaderboardEntry) error {
	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, keyLeaderboardPoints, keyLeaderboardInfo)

	if len(entries) > 0 {
		zMembers := make([]redis.Z, 0, len(entries))
		hashData := make(map[string]interface{}, len(entries))
		for _, entry := range entries {
			if entry.UserID == "" {
				continue
			}
			zMembers = append(zMembers, redis.Z{
				Score:  float64(entry.TotalPoints),
				Member: entry.UserID,
			})
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			hashData[entry.UserID] = data
		}
		if len(zMembers) > 0 {
			pipe.ZAdd(ctx, keyLeaderboardPoints, zMembers...)
			pipe.HSet(ctx, keyLeaderboardInfo, hashData)
		}
	}

	pipe.Expire(ctx, keyLeaderboardPoints, l.ttl)
	pipe.Expire(ctx, keyLeaderboardInfo, l.ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// UpdateScore bumps a single user's score in place (fast path after an
// award, between full rebuilds).
func (l *LeaderboardCache) UpdateScore(ctx context.Context, userID string, totalPoints int) error {
	if userID == "" {
		return ErrCacheKeyEmpty
	}
	return l.cache.Client().ZAdd(ctx, keyLeaderboardPoints, redis.Z{
		Score:  float64(totalPoints),
		Member: userID,
	}).Err()
}

// GetTop returns the top N entries, best first, with ranks populated.
func (l *LeaderboardCache) GetTop(ctx context.Context, count int) ([]LeaderboardEntry, error) {
	if count <= 0 {
		count = 10
	}

	userIDs, err := l.cache.Client().ZRevRange(ctx, keyLeaderboardPoints, 0, int64(count-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, ErrLeaderboardEmpty
	}

	data, err := l.cache.Client().HMGet(ctx, keyLeaderboardInfo, userIDs...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(userIDs))
	for i, v := range data {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var entry LeaderboardEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			continue
		}
		entry.Rank = int64(i) + 1
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetRank returns the 1-based rank of a user.
func (l *LeaderboardCache) GetRank(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrCacheKeyEmpty
	}

	rank, err := l.cache.Client().ZRevRank(ctx, keyLeaderboardPoints, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUserNotRanked
		}
		return 0, err
	}
	return rank + 1, nil
}

// Exists reports whether a cached leaderboard is present.
func (l *LeaderboardCache) Exists(ctx context.Context) (bool, error) {
	count, err := l.cache.Client().Exists(ctx, keyLeaderboardPoints).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Invalidate removes the cached leaderboard.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	return l.cache.Delete(ctx, keyLeaderboardPoints, keyLeaderboardInfo)
}
