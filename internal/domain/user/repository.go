package user

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Интерфейс определяет контракт для работы с хранилищем пользователей.
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над пользователями, нужные движку наград.
type Repository interface {
	// GetByID возвращает пользователя по внутреннему ID.
	// Возвращает shared.ErrUserNotFound, если пользователь не найден.
	GetByID(ctx context.Context, id string) (*User, error)

	// AddPoints атомарно прибавляет очки в хранилище
	// (UPDATE ... SET total_points = total_points + delta) и возвращает
	// новое значение. Чтение-изменение-запись в памяти приложения запрещено:
	// два конкурентных диспатча не должны терять прибавки.
	AddPoints(ctx context.Context, id string, delta Points) (Points, error)

	// SetLevelIfHigher атомарно повышает уровень, только если новый выше
	// сохранённого. Возвращает true, если уровень был изменён.
	// Уровень никогда не понижается.
	SetLevelIfHigher(ctx context.Context, id string, level Level) (bool, error)

	// CountWithMorePoints возвращает количество пользователей с большим
	// числом очков (для вычисления ранга: rank = count + 1).
	CountWithMorePoints(ctx context.Context, id string) (int, error)
}
