package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
)

// UserRepository implements user.Repository using PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// GetByID retrieves a user by internal ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `
		SELECT id, email, display_name, total_points, level, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	u, err := scanUser(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, email, display_name, total_points, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		u.ID, u.Email, u.DisplayName, u.TotalPoints.Int(), u.Level.Int(), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// AddPoints atomically adds points in storage and returns the new total.
// The increment happens inside the UPDATE so concurrent dispatches never
// lose each other's additions.
func (r *UserRepository) AddPoints(ctx context.Context, id string, delta user.Points) (user.Points, error) {
	if delta < 0 {
		return 0, shared.ErrNegativePoints
	}

	query := `
		UPDATE users
		SET total_points = total_points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING total_points
	`

	var total int
	err := r.conn.QueryRow(ctx, query, id, delta.Int()).Scan(&total)
	if err != nil {
		if IsNoRows(err) {
			return 0, shared.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	return user.Points(total), nil
}

// SetLevelIfHigher raises the stored level only when the new value is
// strictly higher. The comparison lives in the WHERE clause, so a stale
// writer cannot lower a level raised by a concurrent dispatch.
func (r *UserRepository) SetLevelIfHigher(ctx context.Context, id string, level user.Level) (bool, error) {
	query := `
		UPDATE users
		SET level = $2, updated_at = NOW()
		WHERE id = $1 AND level < $2
	`

	tag, err := r.conn.Exec(ctx, query, id, level.Int())
	if err != nil {
		return false, fmt.Errorf("failed to set level: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountWithMorePoints returns how many users have strictly more points
// than the given user. Rank = count + 1.
func (r *UserRepository) CountWithMorePoints(ctx context.Context, id string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM users
		WHERE total_points > (SELECT total_points FROM users WHERE id = $1)
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if IsNoRows(err) {
			return 0, shared.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to count users with more points: %w", err)
	}
	return count, nil
}

// TopByPoints returns the highest-scoring users, best first.
// Feeds the leaderboard rebuild job.
func (r *UserRepository) TopByPoints(ctx context.Context, limit int) ([]*user.User, error) {
	query := `
		SELECT id, email, display_name, total_points, level, created_at, updated_at
		FROM users
		ORDER BY total_points DESC, created_at ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var points, level int
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &points, &level, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.TotalPoints = user.Points(points)
	u.Level = user.Level(level)
	return &u, nil
}
