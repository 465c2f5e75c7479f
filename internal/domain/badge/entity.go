// Package badge содержит доменную модель значков (badges).
// Значок выдаётся один раз и навсегда: запись UserBadge уникальна
// для пары (пользователь, значок) и никогда не отзывается.
package badge

import (
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUIREMENT KIND (closed variant)
// Закрытое перечисление вместо открытого сравнения строк: добавление нового
// вида требования - изменение, проверяемое компилятором через exhaustive switch.
// ══════════════════════════════════════════════════════════════════════════════

// RequirementKind определяет вид требования значка.
type RequirementKind int

const (
	// RequirementPoints - накоплено не меньше N очков.
	RequirementPoints RequirementKind = iota

	// RequirementContentComplete - завершено не меньше N единиц контента.
	RequirementContentComplete

	// RequirementStreakDays - серия не меньше N дней.
	RequirementStreakDays
)

// requirementKindNames - соответствие значениям в хранилище.
var requirementKindNames = map[RequirementKind]string{
	RequirementPoints:          "points",
	RequirementContentComplete: "content_complete",
	RequirementStreakDays:      "streak_days",
}

// String возвращает строковое представление вида требования.
func (k RequirementKind) String() string {
	if name, ok := requirementKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseRequirementKind разбирает строку из хранилища.
// Возвращает shared.ErrUnknownRequirement для неизвестных значений.
func ParseRequirementKind(s string) (RequirementKind, error) {
	switch s {
	case "points":
		return RequirementPoints, nil
	case "content_complete":
		return RequirementContentComplete, nil
	case "streak_days":
		return RequirementStreakDays, nil
	default:
		return 0, shared.ErrUnknownRequirement
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RARITY
// ══════════════════════════════════════════════════════════════════════════════

// Rarity - косметическая редкость значка. Движком не оценивается.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Badge представляет запись каталога значков.
type Badge struct {
	// ID - идентификатор значка (UUID).
	ID string

	// Name - название.
	Name string

	// Description - описание условия получения.
	Description string

	// Icon - иконка (emoji или URL).
	Icon string

	// RequirementKind - вид требования.
	RequirementKind RequirementKind

	// RequirementValue - порог требования.
	RequirementValue int

	// PointsReward - бонусные очки при выдаче.
	PointsReward int

	// Rarity - косметическая редкость.
	Rarity Rarity

	// Active - участвует ли значок в оценке.
	Active bool
}

// UserBadge представляет факт выдачи значка пользователю.
// Запись постоянная: выдача никогда не отзывается, даже если
// базовый прогресс впоследствии регрессирует.
type UserBadge struct {
	// ID - идентификатор записи (UUID).
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// BadgeID - идентификатор значка.
	BadgeID string

	// EarnedAt - момент выдачи.
	EarnedAt time.Time
}
