package badge

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над значками и выдачами.
type Repository interface {
	// GetByID возвращает значок по идентификатору.
	// Возвращает shared.ErrBadgeNotFound, если значка нет.
	GetByID(ctx context.Context, badgeID string) (*Badge, error)

	// ListActive возвращает все активные значки каталога.
	ListActive(ctx context.Context) ([]*Badge, error)

	// ListGrantedIDs возвращает множество ID значков, уже выданных пользователю.
	ListGrantedIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// GrantIfAbsent выдаёт значок, если он ещё не выдан
	// (INSERT ... ON CONFLICT DO NOTHING). Возвращает true, если именно
	// этот вызов создал запись: конкурентные выдачи одного значка
	// дают ровно одно true.
	GrantIfAbsent(ctx context.Context, userID, badgeID string) (bool, error)

	// ListUserBadges возвращает выдачи пользователя вместе с данными значков,
	// от новых к старым.
	ListUserBadges(ctx context.Context, userID string) ([]*UserBadge, []*Badge, error)
}
