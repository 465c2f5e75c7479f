package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEANUP NOTIFICATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// CleanupNotificationsJob purges old read or failed notifications.
// Pending and sent notifications are kept regardless of age so nothing
// the user hasn't seen disappears.
type CleanupNotificationsJob struct {
	notificationRepo notification.Repository
	retention        time.Duration
	logger           *slog.Logger
}

// NewCleanupNotificationsJob creates the job with the given retention window.
func NewCleanupNotificationsJob(
	notificationRepo notification.Repository,
	retention time.Duration,
	logger *slog.Logger,
) *CleanupNotificationsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &CleanupNotificationsJob{
		notificationRepo: notificationRepo,
		retention:        retention,
		logger:           logger.With("job", "cleanup_notifications"),
	}
}

// Name returns the unique job name.
func (j *CleanupNotificationsJob) Name() string {
	return "cleanup_notifications"
}

// Description returns a human-readable description.
func (j *CleanupNotificationsJob) Description() string {
	return "Deletes read and failed notifications older than the retention window"
}

// Run executes the cleanup.
func (j *CleanupNotificationsJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)

	deleted, err := j.notificationRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete old notifications: %w", err)
	}

	if deleted > 0 {
		j.logger.Info("purged old notifications", "count", deleted, "cutoff", cutoff)
	}
	return nil
}
