// Package user содержит доменную модель пользователя обучающей платформы.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"strings"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Points представляет накопленные очки пользователя.
// Под управлением движка наград значение монотонно не убывает.
type Points int

// IsValid проверяет, что Points неотрицательные.
func (p Points) IsValid() bool {
	return p >= 0
}

// Add складывает очки.
func (p Points) Add(delta Points) Points {
	return p + delta
}

// Int возвращает значение как int.
func (p Points) Int() int {
	return int(p)
}

// Level представляет уровень пользователя, вычисляемый из очков.
type Level int

// Int возвращает значение как int.
func (l Level) Int() int {
	return int(l)
}

// PointsPerLevel - сколько очков нужно на один уровень.
const PointsPerLevel = 100

// CalculateLevel вычисляет уровень на основе очков.
// Формула: level = floor(points / 100) + 1.
// 0 очков = уровень 1, 99 очков = уровень 1, 100 очков = уровень 2.
func CalculateLevel(points Points) Level {
	if points < 0 {
		return 1
	}
	return Level(int(points)/PointsPerLevel + 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User представляет пользователя платформы с его прогрессией.
// Поля TotalPoints и Level изменяются только диспетчером наград
// и никогда не уменьшаются.
type User struct {
	// ID - внутренний идентификатор (UUID).
	ID string

	// Email - адрес электронной почты.
	Email string

	// DisplayName - отображаемое имя.
	DisplayName string

	// TotalPoints - накопленные очки.
	TotalPoints Points

	// Level - текущий уровень (производный от TotalPoints).
	Level Level

	// CreatedAt - время регистрации.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewUser создаёт нового пользователя с начальным прогрессом.
func NewUser(id, email, displayName string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrInvalidUserID
	}

	now := time.Now().UTC()
	return &User{
		ID:          id,
		Email:       strings.TrimSpace(email),
		DisplayName: strings.TrimSpace(displayName),
		TotalPoints: 0,
		Level:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AddPoints прибавляет очки и возвращает новое значение.
// Отрицательная дельта запрещена: движок наград очки не отнимает.
func (u *User) AddPoints(delta Points) (Points, error) {
	if delta < 0 {
		return u.TotalPoints, shared.ErrNegativePoints
	}
	u.TotalPoints = u.TotalPoints.Add(delta)
	u.UpdatedAt = time.Now().UTC()
	return u.TotalPoints, nil
}

// RecalculateLevel пересчитывает уровень из очков.
// Возвращает true, если уровень повысился. Уровень никогда не понижается.
func (u *User) RecalculateLevel() bool {
	computed := CalculateLevel(u.TotalPoints)
	if computed > u.Level {
		u.Level = computed
		u.UpdatedAt = time.Now().UTC()
		return true
	}
	return false
}
