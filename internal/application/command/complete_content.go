// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/content"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE CONTENT COMMAND
// The single entry point for progress events. Persists the progress update,
// awards base points exactly once per (user, content) pair, and fans out to
// the reward flow (level, streak, badges, challenges).
//
// Exactly-once: the award runs only when this request is the one that flipped
// the record to completed - both in memory (Apply) and in storage (conditional
// completed_at write). A repeated completion is a cheap no-op.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteContentCommand contains the data of one progress event.
type CompleteContentCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// ContentID is the ID of the content item.
	ContentID string

	// Status is the reported progress status.
	Status progress.Status

	// Percentage is the reported completion percentage, [0, 100].
	Percentage int

	// TimeSpentDelta is additional time spent in seconds.
	TimeSpentDelta int

	// Notes are optional user notes (empty keeps existing).
	Notes string

	// Timestamp is when the event occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteContentCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if _, err := shared.NewContentID(c.ContentID); err != nil {
		return err
	}
	u := progress.Update{
		Status:         c.Status,
		Percentage:     c.Percentage,
		TimeSpentDelta: c.TimeSpentDelta,
		Notes:          c.Notes,
	}
	return u.Validate()
}

// CompleteContentResult contains the result of processing a progress event.
type CompleteContentResult struct {
	// UserID is the internal ID of the user.
	UserID string

	// ContentID is the ID of the content item.
	ContentID string

	// Record is the progress record after the update.
	Record *progress.Record

	// FirstCompletion indicates this request flipped the record to completed.
	FirstCompletion bool

	// PointsAwarded is the base award (0 unless FirstCompletion).
	PointsAwarded int

	// TotalPoints is the user's total after the award.
	TotalPoints int

	// Level is the user's level after the reward flow.
	Level int

	// LeveledUp indicates the level was raised by this request.
	LeveledUp bool

	// CurrentStreak is the streak after the reward flow.
	CurrentStreak int

	// NewBadges are badges granted by this request.
	NewBadges []*badge.Badge

	// CompletedChallenges are challenges completed by this request.
	CompletedChallenges []*challenge.Challenge

	// ProcessedAt is when the command finished.
	ProcessedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteContentHandler handles the CompleteContentCommand.
type CompleteContentHandler struct {
	userRepo     user.Repository
	contentRepo  content.Repository
	progressRepo progress.Repository
	rewardFlow   *saga.RewardFlowSaga
	eventBus     shared.EventPublisher
	log          *logger.Logger
}

// NewCompleteContentHandler creates a new CompleteContentHandler.
func NewCompleteContentHandler(
	userRepo user.Repository,
	contentRepo content.Repository,
	progressRepo progress.Repository,
	rewardFlow *saga.RewardFlowSaga,
	eventBus shared.EventPublisher,
	log *logger.Logger,
) *CompleteContentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &CompleteContentHandler{
		userRepo:     userRepo,
		contentRepo:  contentRepo,
		progressRepo: progressRepo,
		rewardFlow:   rewardFlow,
		eventBus:     eventBus,
		log:          log.With(logger.Component("complete_content")),
	}
}

// Handle executes the complete content command.
func (h *CompleteContentHandler) Handle(ctx context.Context, cmd CompleteContentCommand) (*CompleteContentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_content: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	// Content must exist and carry the reward value.
	item, err := h.contentRepo.GetByID(ctx, cmd.ContentID)
	if err != nil {
		return nil, fmt.Errorf("complete_content: failed to load content: %w", err)
	}

	// User must exist before any write.
	u, err := h.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("complete_content: failed to load user: %w", err)
	}

	// One record per (user, content); created on first touch.
	record, err := h.progressRepo.GetOrCreate(ctx, cmd.UserID, cmd.ContentID, timestamp)
	if err != nil {
		return nil, fmt.Errorf("complete_content: failed to load progress: %w", err)
	}

	update := progress.Update{
		Status:         cmd.Status,
		Percentage:     cmd.Percentage,
		TimeSpentDelta: cmd.TimeSpentDelta,
		Notes:          cmd.Notes,
	}
	completionEvent := record.Apply(update, timestamp)

	// The conditional completed_at write in Save is the authoritative guard:
	// of two concurrent completing requests only one gets persisted=true.
	persistedCompletion, err := h.progressRepo.Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("complete_content: failed to save progress: %w", err)
	}

	result := &CompleteContentResult{
		UserID:      cmd.UserID,
		ContentID:   cmd.ContentID,
		Record:      record,
		TotalPoints: u.TotalPoints.Int(),
		Level:       u.Level.Int(),
		ProcessedAt: timestamp,
	}

	if !completionEvent || !persistedCompletion {
		return result, nil
	}

	result.FirstCompletion = true
	reward := item.Reward()

	newTotal, err := h.userRepo.AddPoints(ctx, cmd.UserID, user.Points(reward))
	if err != nil {
		// The completion is already durable; a failed award must surface so
		// the caller can retry. The progress guard makes the retry path go
		// through reconciliation, not a double award.
		return nil, fmt.Errorf("complete_content: failed to award points: %w", err)
	}

	result.PointsAwarded = reward
	result.TotalPoints = newTotal.Int()

	completedEvent := shared.NewContentCompletedEvent(cmd.UserID, cmd.ContentID, reward)
	awardedEvent := shared.NewPointsAwardedEvent(cmd.UserID, reward, newTotal.Int(), "content_completed")
	if cmd.CorrelationID != "" {
		completedEvent.BaseEvent = completedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		awardedEvent.BaseEvent = awardedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.publish(completedEvent)
	h.publish(awardedEvent)

	flowResult, err := h.rewardFlow.Execute(ctx, saga.RewardFlowInput{
		UserID:        cmd.UserID,
		EventToken:    saga.EventTokenContentComplete,
		Timestamp:     timestamp,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		// Base award already happened; degraded result is still a success.
		h.log.Error("reward flow failed",
			logger.UserID(cmd.UserID), logger.ContentID(cmd.ContentID), logger.Err(err))
		return result, nil
	}

	result.Level = flowResult.NewLevel
	result.LeveledUp = flowResult.LeveledUp
	result.CurrentStreak = flowResult.CurrentStreak
	result.NewBadges = flowResult.NewBadges
	result.CompletedChallenges = flowResult.CompletedChallenges
	if flowResult.BonusPoints > 0 {
		result.TotalPoints += flowResult.BonusPoints
	}

	return result, nil
}

func (h *CompleteContentHandler) publish(event shared.Event) {
	if h.eventBus == nil {
		return
	}
	if err := h.eventBus.Publish(event); err != nil {
		h.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
