// Package challenge содержит доменную модель челленджей - ограниченных
// по времени заданий с целью-счётчиком. Пользователь принимает челлендж,
// события прогресса продвигают счётчик, достижение цели даёт награду.
package challenge

import (
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE (catalog entry)
// ══════════════════════════════════════════════════════════════════════════════

// Challenge представляет запись каталога челленджей.
type Challenge struct {
	// ID - идентификатор челленджа (UUID).
	ID string

	// Title - название.
	Title string

	// Description - описание задания.
	Description string

	// Objective - текстовая цель; событие продвигает счётчик, если его
	// токен содержится в цели (см. shared.Objective.Matches).
	Objective shared.Objective

	// TargetValue - сколько подходящих событий нужно для завершения.
	TargetValue int

	// PointsReward - очки за завершение.
	PointsReward int

	// BadgeRewardID - значок за завершение (опционально).
	BadgeRewardID string

	// StartDate - начало действия.
	StartDate time.Time

	// EndDate - конец действия. Сравнивается с моментом события,
	// а не с моментом периодической очистки. nil означает бессрочный
	// челлендж: он никогда не истекает.
	EndDate *time.Time

	// Active - участвует ли челлендж в продвижении.
	Active bool
}

// IsExpired проверяет, истёк ли челлендж на момент at.
// Бессрочный челлендж (EndDate == nil) не истекает никогда.
func (c *Challenge) IsExpired(at time.Time) bool {
	return c.EndDate != nil && at.After(*c.EndDate)
}

// IsAcceptable проверяет, можно ли принять челлендж на момент at.
func (c *Challenge) IsAcceptable(at time.Time) bool {
	return c.Active && !c.IsExpired(at) && !at.Before(c.StartDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER CHALLENGE (participation)
// ══════════════════════════════════════════════════════════════════════════════

// UserChallengeStatus представляет состояние участия.
type UserChallengeStatus string

const (
	// UserChallengeActive - челлендж принят, счётчик продвигается.
	UserChallengeActive UserChallengeStatus = "active"

	// UserChallengeCompleted - цель достигнута. Терминальное состояние:
	// дальнейшие события челлендж не трогают, награда выдаётся один раз.
	UserChallengeCompleted UserChallengeStatus = "completed"

	// UserChallengeExpired - срок истёк до достижения цели.
	UserChallengeExpired UserChallengeStatus = "expired"
)

// UserChallenge представляет участие пользователя в челлендже.
type UserChallenge struct {
	// ID - идентификатор участия (UUID).
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// ChallengeID - идентификатор челленджа.
	ChallengeID string

	// Status - состояние участия.
	Status UserChallengeStatus

	// CurrentValue - текущее значение счётчика, [0, TargetValue].
	CurrentValue int

	// AcceptedAt - момент принятия.
	AcceptedAt time.Time

	// CompletedAt - момент завершения (только для completed).
	CompletedAt *time.Time
}

// NewUserChallenge создаёт участие при принятии челленджа.
func NewUserChallenge(id, userID, challengeID string, now time.Time) *UserChallenge {
	return &UserChallenge{
		ID:           id,
		UserID:       userID,
		ChallengeID:  challengeID,
		Status:       UserChallengeActive,
		CurrentValue: 0,
		AcceptedAt:   now,
	}
}

// Advance продвигает счётчик на одно событие, произошедшее в момент at.
// Возвращает true, если именно этот вызов довёл счётчик до цели.
// Истёкший на момент события челлендж не продвигается и помечается expired.
func (uc *UserChallenge) Advance(c *Challenge, at time.Time) (bool, error) {
	if uc.Status == UserChallengeCompleted {
		return false, shared.ErrChallengeCompleted
	}
	if uc.Status == UserChallengeExpired || c.IsExpired(at) {
		uc.Status = UserChallengeExpired
		return false, shared.ErrChallengeExpired
	}

	uc.CurrentValue++
	if uc.CurrentValue >= c.TargetValue {
		uc.Status = UserChallengeCompleted
		t := at
		uc.CompletedAt = &t
		return true, nil
	}
	return false, nil
}
