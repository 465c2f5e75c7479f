// Package progress содержит доменную модель прогресса пользователя по контенту.
// Одна запись на пару (пользователь, контент). Запись создаётся при первом
// обращении к контенту, изменяется при каждом последующем и никогда не удаляется.
package progress

import (
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS (state machine)
// not_started → in_progress → completed; из completed выхода нет.
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет состояние прохождения контента.
type Status string

const (
	// StatusNotStarted - контент ещё не начат.
	StatusNotStarted Status = "not_started"

	// StatusInProgress - контент в процессе прохождения.
	StatusInProgress Status = "in_progress"

	// StatusCompleted - контент пройден. Терминальное состояние.
	StatusCompleted Status = "completed"
)

// ParseStatus разбирает строку статуса.
// Возвращает shared.ErrInvalidStatus для неизвестных значений.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return Status(s), nil
	default:
		return "", shared.ErrInvalidStatus
	}
}

// IsTerminal возвращает true для терминального состояния.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo проверяет допустимость перехода.
// Повторный переход в то же состояние допустим (идемпотентные обновления).
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusNotStarted:
		return next == StatusInProgress || next == StatusCompleted
	case StatusInProgress:
		return next == StatusCompleted
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record представляет прогресс пользователя по одной единице контента.
// Инвариант: CompletedAt != nil тогда и только тогда, когда Status == completed.
type Record struct {
	// UserID - идентификатор пользователя.
	UserID string

	// ContentID - идентификатор контента.
	ContentID string

	// Status - текущее состояние.
	Status Status

	// ProgressPercentage - процент прохождения, [0, 100].
	ProgressPercentage int

	// TimeSpentSeconds - накопленное время в секундах.
	TimeSpentSeconds int

	// Notes - заметки пользователя.
	Notes string

	// CompletedAt - момент первого перехода в completed (ставится ровно один раз).
	CompletedAt *time.Time

	// LastAccessed - время последнего обращения (обновляется при каждом касании).
	LastAccessed time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// NewRecord создаёт новую запись прогресса при первом обращении к контенту.
func NewRecord(userID, contentID string, now time.Time) *Record {
	return &Record{
		UserID:             userID,
		ContentID:          contentID,
		Status:             StatusInProgress,
		ProgressPercentage: 0,
		LastAccessed:       now,
		CreatedAt:          now,
	}
}

// Update представляет изменение, поступившее с событием прогресса.
type Update struct {
	// Status - новый статус.
	Status Status

	// Percentage - новый процент, [0, 100].
	Percentage int

	// TimeSpentDelta - добавка ко времени в секундах.
	TimeSpentDelta int

	// Notes - новые заметки (пустая строка сохраняет старые).
	Notes string
}

// Validate проверяет корректность изменения до любой записи в хранилище.
func (u Update) Validate() error {
	if _, err := ParseStatus(string(u.Status)); err != nil {
		return err
	}
	if u.Percentage < 0 || u.Percentage > 100 {
		return shared.ErrInvalidPercentage
	}
	if u.TimeSpentDelta < 0 {
		return shared.ErrNegativeValue
	}
	return nil
}

// Apply применяет изменение к записи и возвращает true, если это событие
// первого завершения (переход в completed, которого раньше не было).
// Повторное завершение безвредно: статус остаётся completed,
// CompletedAt не перезаписывается.
func (r *Record) Apply(u Update, now time.Time) bool {
	wasCompleted := r.Status == StatusCompleted

	if r.Status.CanTransitionTo(u.Status) {
		r.Status = u.Status
	}
	if !wasCompleted {
		r.ProgressPercentage = u.Percentage
	}
	r.TimeSpentSeconds += u.TimeSpentDelta
	if u.Notes != "" {
		r.Notes = u.Notes
	}
	r.LastAccessed = now

	completionEvent := u.Status == StatusCompleted && !wasCompleted
	if completionEvent {
		t := now
		r.CompletedAt = &t
		r.ProgressPercentage = 100
	}
	return completionEvent
}
