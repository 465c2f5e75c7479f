// Package eventhandler contains domain event handlers.
//
// Every handler here turns a reward event into a stored notification.
// Delivery is best effort: a handler failure is logged and never rolls
// back the reward that produced the event.
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
// ON BADGE GRANTED HANDLER
// Records a notification for a freshly granted badge. The grant itself is
// already durable (ON CONFLICT guard in storage), so a duplicate event at
// worst produces a duplicate notification, never a duplicate badge.
// ═══════════════════════════════════════════════════════════════════════════

// BadgeGrantedConfig contains the handler configuration.
type BadgeGrantedConfig struct {
	// Gate decides per user whether to emit (nil = always).
	// Wired to the notify.badge_granted feature flag.
	Gate func(userID string) bool

	// MentionBonus includes the bonus points in the message when positive.
	MentionBonus bool
}

// DefaultBadgeGrantedConfig returns the default configuration.
func DefaultBadgeGrantedConfig() BadgeGrantedConfig {
	return BadgeGrantedConfig{MentionBonus: true}
}

// OnBadgeGrantedHandler handles badge grant events.
type OnBadgeGrantedHandler struct {
	notificationRepo notification.Repository
	idGenerator      saga.IDGenerator
	logger           *slog.Logger
	config           BadgeGrantedConfig
}

// NewOnBadgeGrantedHandler creates a new handler.
func NewOnBadgeGrantedHandler(
	notificationRepo notification.Repository,
	idGenerator saga.IDGenerator,
	logger *slog.Logger,
	config BadgeGrantedConfig,
) *OnBadgeGrantedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnBadgeGrantedHandler{
		notificationRepo: notificationRepo,
		idGenerator:      idGenerator,
		logger:           logger.With("handler", "on_badge_granted"),
		config:           config,
	}
}

// Handle processes a badge granted event.
func (h *OnBadgeGrantedHandler) Handle(event shared.Event) error {
	badgeEvent, ok := event.(shared.BadgeGrantedEvent)
	if !ok {
		h.logger.Warn("received non-BadgeGrantedEvent", "event_type", event.EventType())
		return nil
	}

	if h.config.Gate != nil && !h.config.Gate(badgeEvent.UserID) {
		return nil
	}

	message := fmt.Sprintf("Новый значок: %s!", badgeEvent.BadgeName)
	if h.config.MentionBonus && badgeEvent.BonusPoints > 0 {
		message = fmt.Sprintf("%s +%d очков", message, badgeEvent.BonusPoints)
	}

	notif, err := notification.NewNotification(
		h.idGenerator.GenerateID(),
		badgeEvent.UserID,
		notification.NotificationTypeBadgeGranted,
		"Значок получен",
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := h.notificationRepo.Save(context.Background(), notif); err != nil {
		h.logger.Error("failed to save notification",
			"user_id", badgeEvent.UserID,
			"badge_id", badgeEvent.BadgeID,
			"error", err,
		)
		return fmt.Errorf("save notification: %w", err)
	}

	h.logger.Info("badge notification recorded",
		"user_id", badgeEvent.UserID,
		"badge_id", badgeEvent.BadgeID,
	)
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnBadgeGrantedHandler) EventType() shared.EventType {
	return shared.EventBadgeGranted
}
