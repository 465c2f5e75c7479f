package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/notification"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CHALLENGE COMPLETED HANDLER
// Records a notification when a participation reaches its target. Completion
// is terminal at the storage layer, so this fires once per participation.
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeCompletedConfig contains the handler configuration.
type ChallengeCompletedConfig struct {
	// Gate decides per user whether to emit (nil = always).
	// Wired to the notify.challenge_done feature flag.
	Gate func(userID string) bool
}

// OnChallengeCompletedHandler handles challenge completion events.
type OnChallengeCompletedHandler struct {
	notificationRepo notification.Repository
	challengeRepo    challenge.Repository
	idGenerator      saga.IDGenerator
	logger           *slog.Logger
	config           ChallengeCompletedConfig
}

// NewOnChallengeCompletedHandler creates a new handler.
func NewOnChallengeCompletedHandler(
	notificationRepo notification.Repository,
	challengeRepo challenge.Repository,
	idGenerator saga.IDGenerator,
	logger *slog.Logger,
	config ChallengeCompletedConfig,
) *OnChallengeCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnChallengeCompletedHandler{
		notificationRepo: notificationRepo,
		challengeRepo:    challengeRepo,
		idGenerator:      idGenerator,
		logger:           logger.With("handler", "on_challenge_completed"),
		config:           config,
	}
}

// Handle processes a challenge completed event.
func (h *OnChallengeCompletedHandler) Handle(event shared.Event) error {
	completedEvent, ok := event.(shared.ChallengeCompletedEvent)
	if !ok {
		h.logger.Warn("received non-ChallengeCompletedEvent", "event_type", event.EventType())
		return nil
	}

	if h.config.Gate != nil && !h.config.Gate(completedEvent.UserID) {
		return nil
	}

	// The title is cosmetic; a failed lookup falls back to the ID.
	title := completedEvent.ChallengeID
	if c, err := h.challengeRepo.GetByID(context.Background(), completedEvent.ChallengeID); err == nil {
		title = c.Title
	}

	message := fmt.Sprintf("Челлендж выполнен: %s!", title)
	if completedEvent.PointsReward > 0 {
		message = fmt.Sprintf("%s +%d очков", message, completedEvent.PointsReward)
	}

	notif, err := notification.NewNotification(
		h.idGenerator.GenerateID(),
		completedEvent.UserID,
		notification.NotificationTypeChallengeCompleted,
		"Челлендж выполнен",
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := h.notificationRepo.Save(context.Background(), notif); err != nil {
		h.logger.Error("failed to save notification",
			"user_id", completedEvent.UserID,
			"challenge_id", completedEvent.ChallengeID,
			"error", err,
		)
		return fmt.Errorf("save notification: %w", err)
	}

	h.logger.Info("challenge notification recorded",
		"user_id", completedEvent.UserID,
		"challenge_id", completedEvent.ChallengeID,
	)
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnChallengeCompletedHandler) EventType() shared.EventType {
	return shared.EventChallengeCompleted
}
