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
// ON LEVEL UP HANDLER
// Records a notification when the stored level is raised. Levels never
// decrease, so each level value is announced at most once per user.
// ═══════════════════════════════════════════════════════════════════════════

// LevelUpConfig contains the handler configuration.
type LevelUpConfig struct {
	// Gate decides per user whether to emit (nil = always).
	// Wired to the notify.level_up feature flag.
	Gate func(userID string) bool

	// MinLevelToNotify suppresses notifications below this level.
	// Level 1 is the starting level, announcing it would be noise.
	MinLevelToNotify int
}

// DefaultLevelUpConfig returns the default configuration.
func DefaultLevelUpConfig() LevelUpConfig {
	return LevelUpConfig{MinLevelToNotify: 2}
}

// OnLevelUpHandler handles level up events.
type OnLevelUpHandler struct {
	notificationRepo notification.Repository
	idGenerator      saga.IDGenerator
	logger           *slog.Logger
	config           LevelUpConfig
}

// NewOnLevelUpHandler creates a new handler.
func NewOnLevelUpHandler(
	notificationRepo notification.Repository,
	idGenerator saga.IDGenerator,
	logger *slog.Logger,
	config LevelUpConfig,
) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLevelUpHandler{
		notificationRepo: notificationRepo,
		idGenerator:      idGenerator,
		logger:           logger.With("handler", "on_level_up"),
		config:           config,
	}
}

// Handle processes a level up event.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelEvent, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	if levelEvent.NewLevel < h.config.MinLevelToNotify {
		return nil
	}
	if h.config.Gate != nil && !h.config.Gate(levelEvent.UserID) {
		return nil
	}

	message := fmt.Sprintf("Уровень повышен! Теперь ты Level %d", levelEvent.NewLevel)

	notif, err := notification.NewNotification(
		h.idGenerator.GenerateID(),
		levelEvent.UserID,
		notification.NotificationTypeLevelUp,
		"Новый уровень",
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := h.notificationRepo.Save(context.Background(), notif); err != nil {
		h.logger.Error("failed to save notification",
			"user_id", levelEvent.UserID,
			"new_level", levelEvent.NewLevel,
			"error", err,
		)
		return fmt.Errorf("save notification: %w", err)
	}

	h.logger.Info("level up notification recorded",
		"user_id", levelEvent.UserID,
		"old_level", levelEvent.OldLevel,
		"new_level", levelEvent.NewLevel,
	)
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnLevelUpHandler) EventType() shared.EventType {
	return shared.EventLevelUp
}
