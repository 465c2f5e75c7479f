package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ChallengeRepository implements challenge.Repository using PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new PostgreSQL challenge repository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `id, title, description, objective, target_value,
		points_reward, badge_reward_id, start_date, end_date, is_active`

// GetByID retrieves a challenge by ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenges WHERE id = $1`, challengeColumns)

	row := r.conn.QueryRow(ctx, query, challengeID)
	c, err := scanChallenge(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge by id: %w", err)
	}
	return c, nil
}

// ListAvailable returns active challenges not yet expired at the given
// moment. NULL end_date means no expiry; such challenges sort last.
func (r *ChallengeRepository) ListAvailable(ctx context.Context, at time.Time) ([]*challenge.Challenge, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM challenges
		WHERE is_active AND (end_date IS NULL OR end_date >= $1)
		ORDER BY end_date ASC NULLS LAST
	`, challengeColumns)

	rows, err := r.conn.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	return collectChallenges(rows)
}

// Accept creates a participation row. The unique constraint on
// (user_id, challenge_id) turns a repeat accept into ErrChallengeAccepted.
func (r *ChallengeRepository) Accept(ctx context.Context, uc *challenge.UserChallenge) error {
	query := `
		INSERT INTO user_challenges (id, user_id, challenge_id, status, current_value, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		uc.ID, uc.UserID, uc.ChallengeID, string(uc.Status), uc.CurrentValue, uc.AcceptedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrChallengeAccepted
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrChallengeNotFound
		}
		return fmt.Errorf("failed to accept challenge: %w", err)
	}
	return nil
}

// ListActiveForUser returns the user's active participations with their
// challenge data.
func (r *ChallengeRepository) ListActiveForUser(ctx context.Context, userID string) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	return r.listForUser(ctx, userID, true)
}

// ListForUser returns all of the user's participations with their
// challenge data, newest first.
func (r *ChallengeRepository) ListForUser(ctx context.Context, userID string) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	return r.listForUser(ctx, userID, false)
}

func (r *ChallengeRepository) listForUser(ctx context.Context, userID string, activeOnly bool) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	query := `
		SELECT uc.id, uc.user_id, uc.challenge_id, uc.status, uc.current_value,
			uc.accepted_at, uc.completed_at,
			c.id, c.title, c.description, c.objective, c.target_value,
			c.points_reward, c.badge_reward_id, c.start_date, c.end_date, c.is_active
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.user_id = $1
	`
	if activeOnly {
		query += ` AND uc.status = 'active'`
	}
	query += ` ORDER BY uc.accepted_at DESC`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list user challenges: %w", err)
	}
	defer rows.Close()

	var participations []*challenge.UserChallenge
	var challenges []*challenge.Challenge
	for rows.Next() {
		var uc challenge.UserChallenge
		var c challenge.Challenge
		var ucStatus, objective string
		var badgeRewardID *string
		err := rows.Scan(
			&uc.ID, &uc.UserID, &uc.ChallengeID, &ucStatus, &uc.CurrentValue,
			&uc.AcceptedAt, &uc.CompletedAt,
			&c.ID, &c.Title, &c.Description, &objective, &c.TargetValue,
			&c.PointsReward, &badgeRewardID, &c.StartDate, &c.EndDate, &c.Active,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan user challenge row: %w", err)
		}
		uc.Status = challenge.UserChallengeStatus(ucStatus)
		c.Objective = shared.Objective(objective)
		if badgeRewardID != nil {
			c.BadgeRewardID = *badgeRewardID
		}
		participations = append(participations, &uc)
		challenges = append(challenges, &c)
	}
	return participations, challenges, rows.Err()
}

// Advance increments an active participation's counter and marks it
// completed when the target is reached, all in one conditional UPDATE.
// The WHERE clause restricts to active rows whose challenge has not
// expired at the event time, so a terminal participation is never
// touched and two concurrent events cannot both record the completion.
func (r *ChallengeRepository) Advance(ctx context.Context, userChallengeID string, at time.Time) (*challenge.UserChallenge, bool, error) {
	query := `
		UPDATE user_challenges uc
		SET current_value = uc.current_value + 1,
			status = CASE
				WHEN uc.current_value + 1 >= c.target_value THEN 'completed'
				ELSE uc.status
			END,
			completed_at = CASE
				WHEN uc.current_value + 1 >= c.target_value THEN $2
				ELSE uc.completed_at
			END
		FROM challenges c
		WHERE uc.id = $1
			AND uc.challenge_id = c.id
			AND uc.status = 'active'
			AND (c.end_date IS NULL OR c.end_date >= $2)
		RETURNING uc.id, uc.user_id, uc.challenge_id, uc.status, uc.current_value,
			uc.accepted_at, uc.completed_at
	`

	row := r.conn.QueryRow(ctx, query, userChallengeID, at)
	uc, err := scanUserChallenge(row)
	if err == nil {
		return uc, uc.Status == challenge.UserChallengeCompleted, nil
	}
	if !IsNoRows(err) {
		return nil, false, fmt.Errorf("failed to advance challenge: %w", err)
	}

	// Nothing was updated. Re-read to tell the caller why.
	return r.explainStalledAdvance(ctx, userChallengeID, at)
}

// explainStalledAdvance maps a no-op Advance to the domain error the
// participation's actual state implies.
func (r *ChallengeRepository) explainStalledAdvance(ctx context.Context, userChallengeID string, at time.Time) (*challenge.UserChallenge, bool, error) {
	query := `
		SELECT uc.id, uc.user_id, uc.challenge_id, uc.status, uc.current_value,
			uc.accepted_at, uc.completed_at
		FROM user_challenges uc
		WHERE uc.id = $1
	`

	uc, err := scanUserChallenge(r.conn.QueryRow(ctx, query, userChallengeID))
	if err != nil {
		if IsNoRows(err) {
			return nil, false, shared.ErrChallengeNotAccepted
		}
		return nil, false, fmt.Errorf("failed to read user challenge: %w", err)
	}

	switch uc.Status {
	case challenge.UserChallengeCompleted:
		return uc, false, shared.ErrChallengeCompleted
	case challenge.UserChallengeExpired:
		return uc, false, shared.ErrChallengeExpired
	default:
		// Active but not advanced: the challenge expired before the event.
		if _, err := r.conn.Exec(ctx,
			`UPDATE user_challenges SET status = 'expired' WHERE id = $1 AND status = 'active'`,
			userChallengeID,
		); err != nil {
			return uc, false, fmt.Errorf("failed to expire user challenge: %w", err)
		}
		uc.Status = challenge.UserChallengeExpired
		return uc, false, shared.ErrChallengeExpired
	}
}

// ExpireOverdue marks expired every active participation whose challenge
// ended before the given moment. Display hygiene; reward correctness is
// enforced by the event-time check in Advance.
func (r *ChallengeRepository) ExpireOverdue(ctx context.Context, at time.Time) (int, error) {
	query := `
		UPDATE user_challenges uc
		SET status = 'expired'
		FROM challenges c
		WHERE uc.challenge_id = c.id
			AND uc.status = 'active'
			AND c.end_date < $1
	`

	tag, err := r.conn.Exec(ctx, query, at)
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue challenges: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	var challenges []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge row: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var c challenge.Challenge
	var objective string
	var badgeRewardID *string
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &objective, &c.TargetValue,
		&c.PointsReward, &badgeRewardID, &c.StartDate, &c.EndDate, &c.Active,
	)
	if err != nil {
		return nil, err
	}
	c.Objective = shared.Objective(objective)
	if badgeRewardID != nil {
		c.BadgeRewardID = *badgeRewardID
	}
	return &c, nil
}

func scanUserChallenge(row pgx.Row) (*challenge.UserChallenge, error) {
	var uc challenge.UserChallenge
	var status string
	err := row.Scan(
		&uc.ID, &uc.UserID, &uc.ChallengeID, &status, &uc.CurrentValue,
		&uc.AcceptedAt, &uc.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	uc.Status = challenge.UserChallengeStatus(status)
	return &uc, nil
}
