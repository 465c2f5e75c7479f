package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/notification"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK UPDATED HANDLER
// Announces streak milestones. The streak is recomputed on every dispatch,
// so the same value can arrive many times a day; only exact milestone hits
// are announced and at most one notification per milestone per day matters.
// A stray duplicate is acceptable - the notification table is informational.
// ═══════════════════════════════════════════════════════════════════════════

// StreakMilestoneConfig contains the handler configuration.
type StreakMilestoneConfig struct {
	// Gate decides per user whether to emit (nil = always).
	// Wired to the notify.streak_milestone feature flag (gradual rollout).
	Gate func(userID string) bool

	// Milestones are the streak lengths worth announcing.
	Milestones []int
}

// DefaultStreakMilestoneConfig returns the default configuration.
func DefaultStreakMilestoneConfig() StreakMilestoneConfig {
	return StreakMilestoneConfig{Milestones: []int{3, 7, 14, 30}}
}

// OnStreakUpdatedHandler handles streak update events.
type OnStreakUpdatedHandler struct {
	notificationRepo notification.Repository
	idGenerator      saga.IDGenerator
	logger           *slog.Logger
	config           StreakMilestoneConfig
}

// NewOnStreakUpdatedHandler creates a new handler.
func NewOnStreakUpdatedHandler(
	notificationRepo notification.Repository,
	idGenerator saga.IDGenerator,
	logger *slog.Logger,
	config StreakMilestoneConfig,
) *OnStreakUpdatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnStreakUpdatedHandler{
		notificationRepo: notificationRepo,
		idGenerator:      idGenerator,
		logger:           logger.With("handler", "on_streak_updated"),
		config:           config,
	}
}

// Handle processes a streak updated event.
func (h *OnStreakUpdatedHandler) Handle(event shared.Event) error {
	streakEvent, ok := event.(shared.StreakUpdatedEvent)
	if !ok {
		h.logger.Warn("received non-StreakUpdatedEvent", "event_type", event.EventType())
		return nil
	}

	if !h.isMilestone(streakEvent.Streak) {
		return nil
	}
	if h.config.Gate != nil && !h.config.Gate(streakEvent.UserID) {
		return nil
	}

	// Skip if today's milestone notification already exists. Streaks change
	// at most once per calendar day, so checking recent entries is enough.
	if h.alreadyAnnouncedToday(streakEvent.UserID, streakEvent.Streak) {
		return nil
	}

	message := fmt.Sprintf("Серия %d дней! Так держать!", streakEvent.Streak)

	notif, err := notification.NewNotification(
		h.idGenerator.GenerateID(),
		streakEvent.UserID,
		notification.NotificationTypeStreakMilestone,
		"Рубеж серии",
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := h.notificationRepo.Save(context.Background(), notif); err != nil {
		h.logger.Error("failed to save notification",
			"user_id", streakEvent.UserID,
			"streak", streakEvent.Streak,
			"error", err,
		)
		return fmt.Errorf("save notification: %w", err)
	}

	h.logger.Info("streak milestone recorded",
		"user_id", streakEvent.UserID,
		"streak", streakEvent.Streak,
	)
	return nil
}

// isMilestone reports whether the streak value is worth announcing.
func (h *OnStreakUpdatedHandler) isMilestone(streak int) bool {
	for _, m := range h.config.Milestones {
		if streak == m {
			return true
		}
	}
	return false
}

// alreadyAnnouncedToday checks recent notifications for a same-day duplicate.
func (h *OnStreakUpdatedHandler) alreadyAnnouncedToday(userID string, streak int) bool {
	recent, err := h.notificationRepo.ListForUser(context.Background(), userID, 20)
	if err != nil {
		return false
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	want := fmt.Sprintf("Серия %d дней! Так держать!", streak)
	for _, n := range recent {
		if n.Type == notification.NotificationTypeStreakMilestone &&
			n.Message == want &&
			!n.CreatedAt.UTC().Before(today) {
			return true
		}
	}
	return false
}

// EventType returns the event type this handler subscribes to.
func (h *OnStreakUpdatedHandler) EventType() shared.EventType {
	return shared.EventStreakUpdated
}
