// Package content содержит доменную модель учебного контента.
// Движок наград не владеет контентом: ему нужны только идентификатор
// и награда за первое прохождение.
package content

import (
	"time"
)

// ContentType определяет тип учебного материала.
type ContentType string

const (
	// TypeArticle - текстовая статья.
	TypeArticle ContentType = "article"

	// TypeVideo - видеоматериал.
	TypeVideo ContentType = "video"

	// TypeQuiz - интерактивный тест.
	TypeQuiz ContentType = "quiz"

	// TypeCourse - составной курс.
	TypeCourse ContentType = "course"
)

// Item представляет единицу учебного контента.
type Item struct {
	// ID - идентификатор контента (UUID).
	ID string

	// Title - заголовок.
	Title string

	// ContentType - тип материала.
	ContentType ContentType

	// PointsReward - очки за первое прохождение (неотрицательные).
	PointsReward int

	// Active - доступен ли контент.
	Active bool

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// DefaultPointsReward - награда по умолчанию, если у контента она не задана.
const DefaultPointsReward = 10

// Reward возвращает награду за прохождение с учётом значения по умолчанию.
func (i *Item) Reward() int {
	if i.PointsReward <= 0 {
		return DefaultPointsReward
	}
	return i.PointsReward
}
