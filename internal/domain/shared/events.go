// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progress events
	EventContentCompleted EventType = "progress.content_completed"
	EventProgressUpdated  EventType = "progress.updated"
	EventQuizPassed       EventType = "progress.quiz_passed"

	// Reward events
	EventPointsAwarded EventType = "reward.points_awarded"
	EventLevelUp       EventType = "reward.level_up"
	EventBadgeGranted  EventType = "reward.badge_granted"

	// Challenge events
	EventChallengeAccepted  EventType = "challenge.accepted"
	EventChallengeAdvanced  EventType = "challenge.advanced"
	EventChallengeCompleted EventType = "challenge.completed"

	// Streak events
	EventStreakUpdated EventType = "streak.updated"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ContentCompletedEvent is emitted the first time a user completes a content item.
type ContentCompletedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	ContentID     string `json:"content_id"`
	PointsAwarded int    `json:"points_awarded"`
}

// Payload implements Event interface.
func (e ContentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"content_id":     e.ContentID,
		"points_awarded": e.PointsAwarded,
	}
}

// NewContentCompletedEvent creates a new ContentCompletedEvent.
func NewContentCompletedEvent(userID, contentID string, pointsAwarded int) ContentCompletedEvent {
	return ContentCompletedEvent{
		BaseEvent:     NewBaseEvent(EventContentCompleted, userID),
		UserID:        userID,
		ContentID:     contentID,
		PointsAwarded: pointsAwarded,
	}
}

// QuizPassedEvent is emitted when a user answers every quiz question correctly.
type QuizPassedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	ContentID  string `json:"content_id"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	BonusPoints int   `json:"bonus_points"`
}

// Payload implements Event interface.
func (e QuizPassedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"content_id":   e.ContentID,
		"score":        e.Score,
		"total":        e.Total,
		"bonus_points": e.BonusPoints,
	}
}

// NewQuizPassedEvent creates a new QuizPassedEvent.
func NewQuizPassedEvent(userID, contentID string, score, total, bonus int) QuizPassedEvent {
	return QuizPassedEvent{
		BaseEvent:   NewBaseEvent(EventQuizPassed, userID),
		UserID:      userID,
		ContentID:   contentID,
		Score:       score,
		Total:       total,
		BonusPoints: bonus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAwardedEvent is emitted when a user gains points.
type PointsAwardedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "content_completed", "badge_bonus", "challenge_reward"
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(userID string, amount, newTotal int, source string) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent: NewBaseEvent(EventPointsAwarded, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when a user's computed level exceeds the stored level.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// BadgeGrantedEvent is emitted when a user newly qualifies for a badge.
type BadgeGrantedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	BadgeID     string `json:"badge_id"`
	BadgeName   string `json:"badge_name"`
	BonusPoints int    `json:"bonus_points"`
}

// Payload implements Event interface.
func (e BadgeGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"badge_id":     e.BadgeID,
		"badge_name":   e.BadgeName,
		"bonus_points": e.BonusPoints,
	}
}

// NewBadgeGrantedEvent creates a new BadgeGrantedEvent.
func NewBadgeGrantedEvent(userID, badgeID, badgeName string, bonusPoints int) BadgeGrantedEvent {
	return BadgeGrantedEvent{
		BaseEvent:   NewBaseEvent(EventBadgeGranted, userID),
		UserID:      userID,
		BadgeID:     badgeID,
		BadgeName:   badgeName,
		BonusPoints: bonusPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Challenge Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeCompletedEvent is emitted when a user challenge reaches its target.
type ChallengeCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	ChallengeID  string `json:"challenge_id"`
	PointsReward int    `json:"points_reward"`
	BadgeRewarded string `json:"badge_rewarded,omitempty"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"challenge_id":   e.ChallengeID,
		"points_reward":  e.PointsReward,
		"badge_rewarded": e.BadgeRewarded,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, challengeID string, pointsReward int) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:    NewBaseEvent(EventChallengeCompleted, userID),
		UserID:       userID,
		ChallengeID:  challengeID,
		PointsReward: pointsReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakUpdatedEvent is emitted after the streak is recomputed on a completion.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Streak int    `json:"streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"streak":  e.Streak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, streak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID),
		UserID:    userID,
		Streak:    streak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
