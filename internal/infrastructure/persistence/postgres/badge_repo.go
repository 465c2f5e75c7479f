package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// BadgeRepository implements badge.Repository using PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new PostgreSQL badge repository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

const badgeColumns = `id, name, description, icon, requirement_kind,
		requirement_value, points_reward, rarity, is_active`

// GetByID retrieves a badge by ID.
func (r *BadgeRepository) GetByID(ctx context.Context, badgeID string) (*badge.Badge, error) {
	query := fmt.Sprintf(`SELECT %s FROM badges WHERE id = $1`, badgeColumns)

	row := r.conn.QueryRow(ctx, query, badgeID)
	b, err := scanBadge(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrBadgeNotFound
		}
		return nil, fmt.Errorf("failed to get badge by id: %w", err)
	}
	return b, nil
}

// ListActive returns all active catalog badges.
func (r *BadgeRepository) ListActive(ctx context.Context) ([]*badge.Badge, error) {
	query := fmt.Sprintf(`SELECT %s FROM badges WHERE is_active ORDER BY name`, badgeColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge row: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// ListGrantedIDs returns the set of badge IDs already granted to the user.
func (r *BadgeRepository) ListGrantedIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	query := `SELECT badge_id FROM user_badges WHERE user_id = $1`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list granted badge ids: %w", err)
	}
	defer rows.Close()

	granted := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		granted[id] = struct{}{}
	}
	return granted, rows.Err()
}

// GrantIfAbsent grants the badge unless it is already granted.
// The unique constraint on (user_id, badge_id) plus ON CONFLICT DO NOTHING
// guarantee that concurrent grants of the same badge yield exactly one
// inserted row, and only the inserting call sees created = true.
func (r *BadgeRepository) GrantIfAbsent(ctx context.Context, userID, badgeID string) (bool, error) {
	query := `
		INSERT INTO user_badges (id, user_id, badge_id, earned_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query, uuid.NewString(), userID, badgeID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.ErrBadgeNotFound
		}
		return false, fmt.Errorf("failed to grant badge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListUserBadges returns the user's grants joined with badge data,
// newest first.
func (r *BadgeRepository) ListUserBadges(ctx context.Context, userID string) ([]*badge.UserBadge, []*badge.Badge, error) {
	query := `
		SELECT ub.id, ub.user_id, ub.badge_id, ub.earned_at,
			b.id, b.name, b.description, b.icon, b.requirement_kind,
			b.requirement_value, b.points_reward, b.rarity, b.is_active
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.earned_at DESC
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	var grants []*badge.UserBadge
	var badges []*badge.Badge
	for rows.Next() {
		var ub badge.UserBadge
		var b badge.Badge
		var kind string
		var earnedAt time.Time
		err := rows.Scan(
			&ub.ID, &ub.UserID, &ub.BadgeID, &earnedAt,
			&b.ID, &b.Name, &b.Description, &b.Icon, &kind,
			&b.RequirementValue, &b.PointsReward, &b.Rarity, &b.Active,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan user badge row: %w", err)
		}
		ub.EarnedAt = earnedAt
		if b.RequirementKind, err = badge.ParseRequirementKind(kind); err != nil {
			return nil, nil, fmt.Errorf("badge %s: %w", b.ID, err)
		}
		grants = append(grants, &ub)
		badges = append(badges, &b)
	}
	return grants, badges, rows.Err()
}

func scanBadge(row pgx.Row) (*badge.Badge, error) {
	var b badge.Badge
	var kind string
	err := row.Scan(
		&b.ID, &b.Name, &b.Description, &b.Icon, &kind,
		&b.RequirementValue, &b.PointsReward, &b.Rarity, &b.Active,
	)
	if err != nil {
		return nil, err
	}
	if b.RequirementKind, err = badge.ParseRequirementKind(kind); err != nil {
		return nil, fmt.Errorf("badge %s: %w", b.ID, err)
	}
	return &b, nil
}
