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
// ON CONTENT COMPLETED HANDLER
// Records a notification for a first-time content completion. The event is
// emitted only on the completion that won the first-completion guard, so
// repeat completions never reach this handler.
// ═══════════════════════════════════════════════════════════════════════════

// ContentCompletedConfig contains the handler configuration.
type ContentCompletedConfig struct {
	// Gate decides per user whether to emit (nil = always).
	// Wired to the notify.content_done feature flag.
	Gate func(userID string) bool
}

// DefaultContentCompletedConfig returns the default configuration.
func DefaultContentCompletedConfig() ContentCompletedConfig {
	return ContentCompletedConfig{}
}

// OnContentCompletedHandler handles first-completion events.
type OnContentCompletedHandler struct {
	notificationRepo notification.Repository
	idGenerator      saga.IDGenerator
	logger           *slog.Logger
	config           ContentCompletedConfig
}

// NewOnContentCompletedHandler creates a new handler.
func NewOnContentCompletedHandler(
	notificationRepo notification.Repository,
	idGenerator saga.IDGenerator,
	logger *slog.Logger,
	config ContentCompletedConfig,
) *OnContentCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnContentCompletedHandler{
		notificationRepo: notificationRepo,
		idGenerator:      idGenerator,
		logger:           logger.With("handler", "on_content_completed"),
		config:           config,
	}
}

// Handle processes a content completed event.
func (h *OnContentCompletedHandler) Handle(event shared.Event) error {
	completedEvent, ok := event.(shared.ContentCompletedEvent)
	if !ok {
		h.logger.Warn("received non-ContentCompletedEvent", "event_type", event.EventType())
		return nil
	}

	if h.config.Gate != nil && !h.config.Gate(completedEvent.UserID) {
		return nil
	}

	message := "Контент завершён!"
	if completedEvent.PointsAwarded > 0 {
		message = fmt.Sprintf("%s +%d очков", message, completedEvent.PointsAwarded)
	}

	notif, err := notification.NewNotification(
		h.idGenerator.GenerateID(),
		completedEvent.UserID,
		notification.NotificationTypeContentCompleted,
		"Контент завершён",
		message,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := h.notificationRepo.Save(context.Background(), notif); err != nil {
		h.logger.Error("failed to save notification",
			"user_id", completedEvent.UserID,
			"content_id", completedEvent.ContentID,
			"error", err,
		)
		return fmt.Errorf("save notification: %w", err)
	}

	h.logger.Info("completion notification recorded",
		"user_id", completedEvent.UserID,
		"content_id", completedEvent.ContentID,
	)
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnContentCompletedHandler) EventType() shared.EventType {
	return shared.EventContentCompleted
}
