package notification

import (
	"context"
	"time"
)

// Repository определяет операции над уведомлениями.
type Repository interface {
	// Save сохраняет уведомление.
	Save(ctx context.Context, n *Notification) error

	// ListForUser возвращает уведомления пользователя от новых к старым,
	// не больше limit штук.
	ListForUser(ctx context.Context, userID string, limit int) ([]*Notification, error)

	// MarkRead помечает уведомление прочитанным.
	// Возвращает shared.ErrNotificationNotFound, если уведомления нет.
	MarkRead(ctx context.Context, notificationID string, at time.Time) error

	// DeleteOlderThan удаляет уведомления старше cutoff в конечных статусах.
	// Возвращает количество удалённых строк.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
