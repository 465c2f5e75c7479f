package content

import (
	"context"
)

// Repository определяет операции чтения каталога контента.
// Движок наград контент не создаёт и не изменяет.
type Repository interface {
	// GetByID возвращает контент по ID.
	// Возвращает shared.ErrContentNotFound, если контент не найден.
	GetByID(ctx context.Context, id string) (*Item, error)

	// ListActive возвращает весь активный контент.
	ListActive(ctx context.Context) ([]*Item, error)
}

// QuizRepository определяет операции над вопросами теста контента.
type QuizRepository interface {
	// GetQuestions возвращает вопросы теста для контента.
	GetQuestions(ctx context.Context, contentID string) ([]*QuizQuestion, error)

	// SaveAnswer сохраняет ответ пользователя (upsert по (user, question)).
	SaveAnswer(ctx context.Context, answer *QuizAnswer) error

	// SaveResult сохраняет итог попытки (upsert по (user, content)).
	// Возвращает true, если именно эта попытка впервые перевела
	// сохранённый итог в passed.
	SaveResult(ctx context.Context, result *QuizResult) (bool, error)
}
