package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes. Embedding the repository interface covers methods a query never
// calls; only the read paths are implemented.
// ─────────────────────────────────────────────────────────────────────────────

type statsUserRepo struct {
	user.Repository
	u     *user.User
	ahead int
}

func (r *statsUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	if r.u == nil || r.u.ID != id {
		return nil, shared.ErrUserNotFound
	}
	copied := *r.u
	return &copied, nil
}

func (r *statsUserRepo) CountWithMorePoints(_ context.Context, _ string) (int, error) {
	return r.ahead, nil
}

type statsProgressRepo struct {
	progress.Repository
	accessDates []time.Time
	completed   int
	timeSpent   int
}

func (r *statsProgressRepo) RecentAccessDates(_ context.Context, _ string, _ int) ([]time.Time, error) {
	return r.accessDates, nil
}

func (r *statsProgressRepo) CountCompleted(_ context.Context, _ string) (int, error) {
	return r.completed, nil
}

func (r *statsProgressRepo) TotalTimeSpent(_ context.Context, _ string) (int, error) {
	return r.timeSpent, nil
}

type statsBadgeRepo struct {
	badge.Repository
	catalog []*badge.Badge
	grants  []*badge.UserBadge
	earned  []*badge.Badge
}

func (r *statsBadgeRepo) ListActive(_ context.Context) ([]*badge.Badge, error) {
	return r.catalog, nil
}

func (r *statsBadgeRepo) ListGrantedIDs(_ context.Context, _ string) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(r.grants))
	for _, g := range r.grants {
		ids[g.BadgeID] = struct{}{}
	}
	return ids, nil
}

func (r *statsBadgeRepo) ListUserBadges(_ context.Context, _ string) ([]*badge.UserBadge, []*badge.Badge, error) {
	return r.grants, r.earned, nil
}

type memStatsCache struct {
	stats map[string]*UserStatsDTO
	hits  int
}

func newMemStatsCache() *memStatsCache {
	return &memStatsCache{stats: make(map[string]*UserStatsDTO)}
}

func (c *memStatsCache) GetStats(_ context.Context, userID string) (*UserStatsDTO, error) {
	if s, ok := c.stats[userID]; ok {
		c.hits++
		return s, nil
	}
	return nil, nil
}

func (c *memStatsCache) SetStats(_ context.Context, userID string, stats *UserStatsDTO) error {
	c.stats[userID] = stats
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetUserStats
// ─────────────────────────────────────────────────────────────────────────────

func TestGetUserStats_AggregatesProfileView(t *testing.T) {
	now := time.Now().UTC()
	userRepo := &statsUserRepo{
		u: &user.User{
			ID:          "user-1",
			DisplayName: "Aigerim",
			TotalPoints: 250,
			Level:       3,
		},
		ahead: 4,
	}
	progressRepo := &statsProgressRepo{
		accessDates: []time.Time{
			now.Truncate(24 * time.Hour),
			now.Truncate(24 * time.Hour).Add(-24 * time.Hour),
		},
		completed: 5,
		timeSpent: 3600,
	}
	badgeRepo := &statsBadgeRepo{
		grants: []*badge.UserBadge{{BadgeID: "badge-1"}, {BadgeID: "badge-2"}},
	}

	h := NewGetUserStatsHandler(userRepo, progressRepo, badgeRepo, nil, nil)
	stats, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "Aigerim", stats.DisplayName)
	assert.Equal(t, 250, stats.TotalPoints)
	assert.Equal(t, 3, stats.Level)
	assert.Equal(t, 50, stats.PointsToNextLevel)
	assert.InDelta(t, 0.5, stats.LevelProgress, 0.001)
	assert.Equal(t, 5, stats.Rank)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 5, stats.CompletedCount)
	assert.Equal(t, 3600, stats.TotalTimeSpentSeconds)
	assert.Equal(t, 2, stats.BadgeCount)
}

func TestGetUserStats_StoredLevelAheadOfPoints(t *testing.T) {
	// The stored level never decreases; points alone may compute lower.
	userRepo := &statsUserRepo{
		u: &user.User{ID: "user-1", TotalPoints: 50, Level: 4},
	}
	h := NewGetUserStatsHandler(userRepo, &statsProgressRepo{}, &statsBadgeRepo{}, nil, nil)

	stats, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.PointsToNextLevel)
	assert.Equal(t, 1.0, stats.LevelProgress)
}

func TestGetUserStats_CacheRoundTrip(t *testing.T) {
	userRepo := &statsUserRepo{u: &user.User{ID: "user-1", TotalPoints: 10, Level: 1}}
	cache := newMemStatsCache()
	h := NewGetUserStatsHandler(userRepo, &statsProgressRepo{}, &statsBadgeRepo{}, cache, nil)

	first, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1"})
	require.NoError(t, err)

	second, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
}

func TestGetUserStats_BypassCacheRecomputes(t *testing.T) {
	userRepo := &statsUserRepo{u: &user.User{ID: "user-1", TotalPoints: 10, Level: 1}}
	cache := newMemStatsCache()
	h := NewGetUserStatsHandler(userRepo, &statsProgressRepo{}, &statsBadgeRepo{}, cache, nil)

	_, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1"})
	require.NoError(t, err)

	userRepo.u.TotalPoints = 110
	fresh, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1", BypassCache: true})
	require.NoError(t, err)

	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, 110, fresh.TotalPoints)

	// The recompute refreshes the cache for the next plain read.
	cached, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 110, cached.TotalPoints)
}

func TestGetUserStats_Validation(t *testing.T) {
	h := NewGetUserStatsHandler(&statsUserRepo{}, &statsProgressRepo{}, &statsBadgeRepo{}, nil, nil)

	_, err := h.Handle(context.Background(), GetUserStatsQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestGetUserStats_UserNotFound(t *testing.T) {
	h := NewGetUserStatsHandler(&statsUserRepo{}, &statsProgressRepo{}, &statsBadgeRepo{}, nil, nil)

	_, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// ListBadges
// ─────────────────────────────────────────────────────────────────────────────

func TestListBadges_AnnotatesEarnedState(t *testing.T) {
	earnedAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := &statsBadgeRepo{
		catalog: []*badge.Badge{
			{ID: "badge-1", Name: "Первые шаги"},
			{ID: "badge-2", Name: "Марафонец"},
		},
		grants: []*badge.UserBadge{{BadgeID: "badge-1", EarnedAt: earnedAt}},
		earned: []*badge.Badge{{ID: "badge-1", Name: "Первые шаги"}},
	}
	h := NewListBadgesHandler(repo)

	result, err := h.Handle(context.Background(), ListBadgesQuery{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, result.Badges, 2)
	assert.Equal(t, 1, result.EarnedCount)
	assert.True(t, result.Badges[0].Earned)
	require.NotNil(t, result.Badges[0].EarnedAt)
	assert.Equal(t, earnedAt, *result.Badges[0].EarnedAt)
	assert.False(t, result.Badges[1].Earned)
}

func TestListBadges_EarnedBadgeSurvivesDeactivation(t *testing.T) {
	// badge-old was granted and later removed from the active catalog.
	repo := &statsBadgeRepo{
		catalog: []*badge.Badge{{ID: "badge-1", Name: "Первые шаги"}},
		grants:  []*badge.UserBadge{{BadgeID: "badge-old", EarnedAt: time.Now()}},
		earned:  []*badge.Badge{{ID: "badge-old", Name: "Ветеран"}},
	}
	h := NewListBadgesHandler(repo)

	result, err := h.Handle(context.Background(), ListBadgesQuery{UserID: "user-1"})
	require.NoError(t, err)

	require.Len(t, result.Badges, 2)
	assert.Equal(t, 1, result.EarnedCount)
}

func TestListBadges_EarnedOnlyFilter(t *testing.T) {
	repo := &statsBadgeRepo{
		catalog: []*badge.Badge{
			{ID: "badge-1"},
			{ID: "badge-2"},
		},
		grants: []*badge.UserBadge{{BadgeID: "badge-2", EarnedAt: time.Now()}},
	}
	h := NewListBadgesHandler(repo)

	result, err := h.Handle(context.Background(), ListBadgesQuery{UserID: "user-1", EarnedOnly: true})
	require.NoError(t, err)

	require.Len(t, result.Badges, 1)
	assert.Equal(t, "badge-2", result.Badges[0].ID)
}

func TestListBadges_EarnedOnlyRequiresUserID(t *testing.T) {
	h := NewListBadgesHandler(&statsBadgeRepo{})

	_, err := h.Handle(context.Background(), ListBadgesQuery{EarnedOnly: true})
	assert.True(t, shared.IsValidation(err))
}
