// Package notification содержит доменную модель уведомлений о наградах.
// Уведомления информируют пользователя о значимых событиях прогресса:
// выдаче значка, повышении уровня, завершении челленджа, серии дней.
// Доставка - best effort: сбой уведомления никогда не откатывает награду.
package notification

import (
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType определяет тип уведомления.
type NotificationType string

const (
	// NotificationTypeBadgeGranted - выдан значок.
	// "Новый значок: Первые шаги!"
	NotificationTypeBadgeGranted NotificationType = "badge_granted"

	// NotificationTypeLevelUp - повышение уровня.
	// "Уровень повышен! Теперь ты Level 2"
	NotificationTypeLevelUp NotificationType = "level_up"

	// NotificationTypeChallengeCompleted - завершён челлендж.
	// "Челлендж выполнен: Пять уроков за неделю! +200 очков"
	NotificationTypeChallengeCompleted NotificationType = "challenge_completed"

	// NotificationTypeStreakMilestone - достигнут рубеж серии.
	// "Серия 7 дней! Так держать!"
	NotificationTypeStreakMilestone NotificationType = "streak_milestone"

	// NotificationTypeQuizPassed - тест пройден без ошибок.
	// "Тест пройден на 100%! +50 очков"
	NotificationTypeQuizPassed NotificationType = "quiz_passed"

	// NotificationTypeContentCompleted - контент завершён впервые.
	// "Урок завершён! +20 очков"
	NotificationTypeContentCompleted NotificationType = "content_completed"
)

// IsValid проверяет, что тип уведомления корректен.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeBadgeGranted,
		NotificationTypeLevelUp,
		NotificationTypeChallengeCompleted,
		NotificationTypeStreakMilestone,
		NotificationTypeQuizPassed,
		NotificationTypeContentCompleted:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа.
func (t NotificationType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION STATUS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationStatus определяет статус уведомления.
type NotificationStatus string

const (
	// StatusPending - уведомление создано, но ещё не показано.
	StatusPending NotificationStatus = "pending"

	// StatusSent - уведомление доставлено.
	StatusSent NotificationStatus = "sent"

	// StatusRead - уведомление прочитано пользователем.
	StatusRead NotificationStatus = "read"

	// StatusFailed - доставка не удалась.
	StatusFailed NotificationStatus = "failed"
)

// IsFinal возвращает true для конечного статуса.
func (s NotificationStatus) IsFinal() bool {
	return s == StatusRead || s == StatusFailed
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification представляет уведомление о награде.
type Notification struct {
	// ID - уникальный идентификатор уведомления (UUID).
	ID string

	// UserID - получатель.
	UserID string

	// Type - тип уведомления.
	Type NotificationType

	// Title - заголовок.
	Title string

	// Message - текст уведомления.
	Message string

	// Status - статус доставки.
	Status NotificationStatus

	// CreatedAt - время создания.
	CreatedAt time.Time

	// ReadAt - время прочтения.
	ReadAt *time.Time
}

// NewNotification создаёт уведомление с валидацией.
func NewNotification(id, userID string, typ NotificationType, title, message string, now time.Time) (*Notification, error) {
	if !typ.IsValid() {
		return nil, shared.NewDomainError("notification", "New", shared.ErrInvalidInput, "invalid notification type")
	}
	if message == "" {
		return nil, shared.NewDomainError("notification", "New", shared.ErrEmptyValue, "notification message cannot be empty")
	}
	return &Notification{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Status:    StatusPending,
		CreatedAt: now,
	}, nil
}

// MarkSent помечает уведомление доставленным.
func (n *Notification) MarkSent() {
	if n.Status == StatusPending {
		n.Status = StatusSent
	}
}

// MarkRead помечает уведомление прочитанным.
func (n *Notification) MarkRead(now time.Time) {
	if n.Status.IsFinal() {
		return
	}
	n.Status = StatusRead
	n.ReadAt = &now
}

// MarkFailed помечает доставку неудачной.
func (n *Notification) MarkFailed() {
	if !n.Status.IsFinal() {
		n.Status = StatusFailed
	}
}

// String возвращает строковое представление для логирования.
func (n *Notification) String() string {
	return fmt.Sprintf("Notification{ID: %s, Type: %s, User: %s, Status: %s}",
		n.ID, n.Type, n.UserID, n.Status)
}
