package content

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ
// Тест, привязанный к контенту. Прохождение теста (все ответы верны) -
// отдельное правило награды с фиксированным бонусом, не связанным
// с PointsReward контента.
// ══════════════════════════════════════════════════════════════════════════════

// QuizQuestion представляет один вопрос теста.
type QuizQuestion struct {
	// ID - идентификатор вопроса.
	ID string

	// ContentID - контент, к которому привязан вопрос.
	ContentID string

	// Question - текст вопроса.
	Question string

	// Options - варианты ответа (A, B, C, D).
	Options []string

	// CorrectAnswer - буква правильного ответа.
	CorrectAnswer string
}

// IsCorrect проверяет ответ без учёта регистра.
func (q *QuizQuestion) IsCorrect(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
}

// QuizAnswer представляет сохранённый ответ пользователя на вопрос.
type QuizAnswer struct {
	UserID         string
	ContentID      string
	QuestionID     string
	SelectedAnswer string
	IsCorrect      bool
	AnsweredAt     time.Time
}

// QuizResult представляет итог попытки прохождения теста.
type QuizResult struct {
	UserID            string
	ContentID         string
	QuestionsAnswered int
	QuestionsCorrect  int
	TotalQuestions    int
	Passed            bool
	CompletedAt       *time.Time
}
