package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/notification"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// NotificationRepository implements notification.Repository using PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new PostgreSQL notification repository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Save persists a notification.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, status, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			read_at = EXCLUDED.read_at
	`

	_, err := r.conn.Exec(ctx, query,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, string(n.Status), n.CreatedAt, n.ReadAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// ListForUser returns the user's notifications, newest first, at most
// limit entries.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, status, created_at, read_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead marks a notification as read. Already-final notifications
// keep their status.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string, at time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'read', read_at = $2
		WHERE id = $1 AND status NOT IN ('read', 'failed')
	`

	tag, err := r.conn.Exec(ctx, query, notificationID, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already final; only the former is an error.
		var exists bool
		err := r.conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, notificationID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check notification: %w", err)
		}
		if !exists {
			return shared.ErrNotificationNotFound
		}
	}
	return nil
}

// DeleteOlderThan removes notifications in final statuses created before
// the cutoff. Returns the number of deleted rows.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM notifications
		WHERE created_at < $1 AND status IN ('read', 'failed')
	`

	tag, err := r.conn.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var n notification.Notification
	var typ, status string
	err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &status, &n.CreatedAt, &n.ReadAt)
	if err != nil {
		return nil, err
	}
	n.Type = notification.NotificationType(typ)
	n.Status = notification.NotificationStatus(status)
	return &n, nil
}
