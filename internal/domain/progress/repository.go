package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями прогресса.
type Repository interface {
	// Get возвращает запись прогресса для пары (пользователь, контент).
	// Возвращает shared.ErrProgressNotFound, если записи нет.
	Get(ctx context.Context, userID, contentID string) (*Record, error)

	// GetOrCreate возвращает существующую запись или создаёт новую
	// (INSERT ... ON CONFLICT DO NOTHING + повторное чтение, чтобы два
	// конкурентных запроса не создали дубликат).
	GetOrCreate(ctx context.Context, userID, contentID string, now time.Time) (*Record, error)

	// Save сохраняет изменённую запись. CompletedAt в хранилище ставится
	// условно (WHERE completed_at IS NULL), чтобы первый переход
	// в completed был атомарным даже при конкурентных запросах.
	// Возвращает true, если именно этот вызов зафиксировал завершение.
	Save(ctx context.Context, record *Record) (bool, error)

	// ListForUser возвращает записи пользователя, отсортированные
	// по последнему обращению (новые первыми).
	ListForUser(ctx context.Context, userID string) ([]*Record, error)

	// CountCompleted возвращает количество завершённых записей пользователя.
	CountCompleted(ctx context.Context, userID string) (int, error)

	// RecentAccessDates возвращает различные даты обращений (день, без времени)
	// от новых к старым, не больше limit штук. Основа для вычисления серии.
	RecentAccessDates(ctx context.Context, userID string, limit int) ([]time.Time, error)

	// TotalTimeSpent возвращает суммарное время по завершённому контенту в секундах.
	TotalTimeSpent(ctx context.Context, userID string) (int, error)
}
