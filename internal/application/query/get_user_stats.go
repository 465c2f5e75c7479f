// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Aggregates everything the profile screen shows: points, level, rank,
// streak, completions, time spent, badge count. This is the hot read path,
// so results go through a short-lived cache; every underlying value is
// recomputed from storage on miss, never stored incrementally.
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches assembled stats DTOs. A failed read counts as a miss and
// a failed write is dropped: the cache is an optimization, not a source of truth.
type StatsCache interface {
	GetStats(ctx context.Context, userID string) (*UserStatsDTO, error)
	SetStats(ctx context.Context, userID string, stats *UserStatsDTO) error
}

// GetUserStatsQuery contains the stats request parameters.
type GetUserStatsQuery struct {
	// UserID is the internal ID of the user.
	UserID string

	// BypassCache forces a recompute (used right after a reward dispatch).
	BypassCache bool
}

// Validate validates the query parameters.
func (q *GetUserStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id must be provided")
	}
	return nil
}

// UserStatsDTO is the aggregated progression view of one user.
type UserStatsDTO struct {
	// UserID is the internal ID of the user.
	UserID string `json:"user_id"`

	// DisplayName is the user's display name.
	DisplayName string `json:"display_name"`

	// TotalPoints is the accumulated point total.
	TotalPoints int `json:"total_points"`

	// Level is the current level.
	Level int `json:"level"`

	// PointsToNextLevel is how many points remain until the next level.
	PointsToNextLevel int `json:"points_to_next_level"`

	// LevelProgress is the progress within the current level (0.0 - 1.0).
	LevelProgress float64 `json:"level_progress"`

	// Rank is the position by points (1 = most points).
	Rank int `json:"rank"`

	// CurrentStreak is the consecutive-day streak ending today or yesterday.
	CurrentStreak int `json:"current_streak"`

	// CompletedCount is the number of completed content items.
	CompletedCount int `json:"completed_count"`

	// TotalTimeSpentSeconds is the time spent on completed content.
	TotalTimeSpentSeconds int `json:"total_time_spent_seconds"`

	// BadgeCount is the number of earned badges.
	BadgeCount int `json:"badge_count"`

	// GeneratedAt is when this snapshot was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetUserStatsHandler handles stats requests.
type GetUserStatsHandler struct {
	userRepo     user.Repository
	progressRepo progress.Repository
	badgeRepo    badge.Repository
	cache        StatsCache
	log          *logger.Logger
}

// NewGetUserStatsHandler creates a new handler. cache may be nil.
func NewGetUserStatsHandler(
	userRepo user.Repository,
	progressRepo progress.Repository,
	badgeRepo badge.Repository,
	cache StatsCache,
	log *logger.Logger,
) *GetUserStatsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetUserStatsHandler{
		userRepo:     userRepo,
		progressRepo: progressRepo,
		badgeRepo:    badgeRepo,
		cache:        cache,
		log:          log.With(logger.Component("get_user_stats")),
	}
}

// Handle executes the stats query.
func (h *GetUserStatsHandler) Handle(ctx context.Context, query GetUserStatsQuery) (*UserStatsDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserStats", shared.ErrValidation, err.Error(), err)
	}

	if h.cache != nil && !query.BypassCache {
		if cached, err := h.cache.GetStats(ctx, query.UserID); err == nil && cached != nil {
			return cached, nil
		}
	}

	u, err := h.userRepo.GetByID(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	dto := &UserStatsDTO{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		TotalPoints: u.TotalPoints.Int(),
		Level:       u.Level.Int(),
		GeneratedAt: time.Now().UTC(),
	}

	// Points within the current level. The stored level may be ahead of the
	// computed one (it never decreases), in which case the remainder is zero.
	computed := user.CalculateLevel(u.TotalPoints)
	if computed >= u.Level {
		within := u.TotalPoints.Int() % user.PointsPerLevel
		dto.PointsToNextLevel = user.PointsPerLevel - within
		dto.LevelProgress = float64(within) / float64(user.PointsPerLevel)
	} else {
		dto.PointsToNextLevel = 0
		dto.LevelProgress = 1.0
	}

	// Rank by points: count of users strictly ahead, plus one.
	ahead, err := h.userRepo.CountWithMorePoints(ctx, query.UserID)
	if err != nil {
		h.log.Warn("rank lookup failed", logger.UserID(query.UserID), logger.Err(err))
	} else {
		dto.Rank = ahead + 1
	}

	dates, err := h.progressRepo.RecentAccessDates(ctx, query.UserID, progress.StreakLookbackDays)
	if err != nil {
		h.log.Warn("access dates lookup failed", logger.UserID(query.UserID), logger.Err(err))
	} else {
		dto.CurrentStreak = progress.CalculateStreak(dto.GeneratedAt, dates)
	}

	completed, err := h.progressRepo.CountCompleted(ctx, query.UserID)
	if err != nil {
		h.log.Warn("completed count lookup failed", logger.UserID(query.UserID), logger.Err(err))
	} else {
		dto.CompletedCount = completed
	}

	timeSpent, err := h.progressRepo.TotalTimeSpent(ctx, query.UserID)
	if err != nil {
		h.log.Warn("time spent lookup failed", logger.UserID(query.UserID), logger.Err(err))
	} else {
		dto.TotalTimeSpentSeconds = timeSpent
	}

	granted, err := h.badgeRepo.ListGrantedIDs(ctx, query.UserID)
	if err != nil {
		h.log.Warn("badge count lookup failed", logger.UserID(query.UserID), logger.Err(err))
	} else {
		dto.BadgeCount = len(granted)
	}

	if h.cache != nil {
		if err := h.cache.SetStats(ctx, query.UserID, dto); err != nil {
			h.log.Debug("stats cache write failed", logger.UserID(query.UserID), logger.Err(err))
		}
	}

	return dto, nil
}
