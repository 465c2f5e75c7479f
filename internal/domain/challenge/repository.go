package challenge

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над челленджами и участиями.
type Repository interface {
	// GetByID возвращает челлендж по идентификатору.
	// Возвращает shared.ErrChallengeNotFound, если челленджа нет.
	GetByID(ctx context.Context, challengeID string) (*Challenge, error)

	// ListAvailable возвращает активные неистёкшие на момент at челленджи.
	ListAvailable(ctx context.Context, at time.Time) ([]*Challenge, error)

	// Accept создаёт участие (INSERT с уникальным ограничением на пару
	// пользователь/челлендж). Возвращает shared.ErrChallengeAccepted
	// при повторном принятии.
	Accept(ctx context.Context, uc *UserChallenge) error

	// ListActiveForUser возвращает активные участия пользователя
	// вместе с данными челленджей.
	ListActiveForUser(ctx context.Context, userID string) ([]*UserChallenge, []*Challenge, error)

	// ListForUser возвращает все участия пользователя вместе с данными
	// челленджей, от новых к старым.
	ListForUser(ctx context.Context, userID string) ([]*UserChallenge, []*Challenge, error)

	// Advance атомарно увеличивает счётчик активного участия и помечает
	// завершение при достижении цели (одним UPDATE с условием по статусу).
	// Возвращает обновлённое участие и true, если именно этот вызов
	// зафиксировал завершение.
	Advance(ctx context.Context, userChallengeID string, at time.Time) (*UserChallenge, bool, error)

	// ExpireOverdue помечает expired все активные участия челленджей,
	// чей срок истёк к моменту at. Возвращает количество затронутых строк.
	// Подстраховка для витрин: корректность наград обеспечивает проверка
	// срока в момент события.
	ExpireOverdue(ctx context.Context, at time.Time) (int, error)
}
