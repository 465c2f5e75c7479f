// Package jobs contains the engine's scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE CHALLENGES JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireChallengesJob marks overdue active participations as expired.
// Display hygiene only: the dispatch path checks the deadline against the
// event time, so a participation missed by this sweep still never earns
// a late reward.
type ExpireChallengesJob struct {
	challengeRepo challenge.Repository
	logger        *slog.Logger
}

// NewExpireChallengesJob creates the job.
func NewExpireChallengesJob(challengeRepo challenge.Repository, logger *slog.Logger) *ExpireChallengesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireChallengesJob{
		challengeRepo: challengeRepo,
		logger:        logger.With("job", "expire_challenges"),
	}
}

// Name returns the unique job name.
func (j *ExpireChallengesJob) Name() string {
	return "expire_challenges"
}

// Description returns a human-readable description.
func (j *ExpireChallengesJob) Description() string {
	return "Marks active challenge participations whose deadline has passed as expired"
}

// Run executes the sweep.
func (j *ExpireChallengesJob) Run(ctx context.Context) error {
	now := time.Now().UTC()

	expired, err := j.challengeRepo.ExpireOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("expire overdue challenges: %w", err)
	}

	if expired > 0 {
		j.logger.Info("expired overdue participations", "count", expired)
	}
	return nil
}
