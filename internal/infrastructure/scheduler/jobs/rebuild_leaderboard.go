package jobs

import (
	"context"
	"fmt"
	"log/slog"

	rediscache "github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/redis"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJob refreshes the cached point rankings from the
// users table. Between rebuilds the cache drifts by at most one award
// per user, which is acceptable for a display ranking.
type RebuildLeaderboardJob struct {
	userRepo         *postgres.UserRepository
	leaderboardCache *rediscache.LeaderboardCache
	logger           *slog.Logger
	config           RebuildLeaderboardConfig
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// MaxEntries caps how many users the cached leaderboard holds.
	MaxEntries int
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{MaxEntries: 500}
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(
	userRepo *postgres.UserRepository,
	leaderboardCache *rediscache.LeaderboardCache,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 500
	}
	return &RebuildLeaderboardJob{
		userRepo:         userRepo,
		leaderboardCache: leaderboardCache,
		logger:           logger.With("job", "rebuild_leaderboard"),
		config:           config,
	}
}

// Name returns the unique job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the cached point leaderboard from persisted user totals"
}

// Run executes the rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	users, err := j.userRepo.TopByPoints(ctx, j.config.MaxEntries)
	if err != nil {
		return fmt.Errorf("load top users: %w", err)
	}

	entries := make([]rediscache.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, rediscache.LeaderboardEntry{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			TotalPoints: u.TotalPoints.Int(),
			Level:       u.Level.Int(),
		})
	}

	if err := j.leaderboardCache.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild leaderboard cache: %w", err)
	}

	j.logger.Info("leaderboard rebuilt", "entries", len(entries))
	return nil
}
