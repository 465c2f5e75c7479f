package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ProgressRepository implements progress.Repository using PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new PostgreSQL progress repository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `user_id, content_id, status, progress_percentage,
		time_spent_seconds, notes, completed_at, last_accessed, created_at`

// Get retrieves the progress record for a (user, content) pair.
func (r *ProgressRepository) Get(ctx context.Context, userID, contentID string) (*progress.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM progress
		WHERE user_id = $1 AND content_id = $2
	`, progressColumns)

	row := r.conn.QueryRow(ctx, query, userID, contentID)
	rec, err := scanProgress(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return rec, nil
}

// GetOrCreate returns the existing record or creates a fresh one.
// INSERT ... ON CONFLICT DO NOTHING followed by a re-read, so two
// concurrent first touches of the same content produce exactly one row.
func (r *ProgressRepository) GetOrCreate(ctx context.Context, userID, contentID string, now time.Time) (*progress.Record, error) {
	fresh := progress.NewRecord(userID, contentID, now)

	insert := `
		INSERT INTO progress (user_id, content_id, status, progress_percentage,
			time_spent_seconds, notes, last_accessed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, content_id) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, insert,
		fresh.UserID, fresh.ContentID, string(fresh.Status), fresh.ProgressPercentage,
		fresh.TimeSpentSeconds, fresh.Notes, fresh.LastAccessed, fresh.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert progress: %w", err)
	}

	return r.Get(ctx, userID, contentID)
}

// Save persists a modified record. completed_at is only written where it
// is still NULL; the RETURNING clause reports whether this call was the
// one that set it, which is the first-completion signal the reward flow
// keys on.
func (r *ProgressRepository) Save(ctx context.Context, record *progress.Record) (bool, error) {
	query := `
		UPDATE progress
		SET status = $3,
			progress_percentage = $4,
			time_spent_seconds = $5,
			notes = $6,
			completed_at = CASE
				WHEN completed_at IS NULL THEN $7
				ELSE completed_at
			END,
			last_accessed = $8
		WHERE user_id = $1 AND content_id = $2
		RETURNING COALESCE(completed_at = $7, FALSE) AS persisted_completion
	`

	var completedAt *time.Time
	if record.CompletedAt != nil {
		t := record.CompletedAt.UTC()
		completedAt = &t
	}

	var persistedCompletion bool
	err := r.conn.QueryRow(ctx, query,
		record.UserID, record.ContentID, string(record.Status),
		record.ProgressPercentage, record.TimeSpentSeconds, record.Notes,
		completedAt, record.LastAccessed,
	).Scan(&persistedCompletion)
	if err != nil {
		if IsNoRows(err) {
			return false, shared.ErrProgressNotFound
		}
		return false, fmt.Errorf("failed to save progress: %w", err)
	}

	// A record that isn't completing can't have persisted a completion,
	// whatever the CASE expression compared against NULL.
	if record.CompletedAt == nil {
		return false, nil
	}
	return persistedCompletion, nil
}

// ListForUser returns the user's records, most recently accessed first.
func (r *ProgressRepository) ListForUser(ctx context.Context, userID string) ([]*progress.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM progress
		WHERE user_id = $1
		ORDER BY last_accessed DESC
	`, progressColumns)

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountCompleted returns the user's number of completed records.
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM progress
		WHERE user_id = $1 AND completed_at IS NOT NULL
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed progress: %w", err)
	}
	return count, nil
}

// RecentAccessDates returns distinct UTC access days, newest first,
// at most limit entries. Raw material for the streak computation.
func (r *ProgressRepository) RecentAccessDates(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	query := `
		SELECT DISTINCT DATE(last_accessed AT TIME ZONE 'UTC') AS day
		FROM progress
		WHERE user_id = $1
		ORDER BY day DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query access dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan access date: %w", err)
		}
		dates = append(dates, day.UTC())
	}
	return dates, rows.Err()
}

// TotalTimeSpent returns the total seconds spent on completed content.
func (r *ProgressRepository) TotalTimeSpent(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(time_spent_seconds), 0)
		FROM progress
		WHERE user_id = $1 AND completed_at IS NOT NULL
	`

	var total int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum time spent: %w", err)
	}
	return total, nil
}

func scanProgress(row pgx.Row) (*progress.Record, error) {
	var rec progress.Record
	var status string
	err := row.Scan(
		&rec.UserID, &rec.ContentID, &status, &rec.ProgressPercentage,
		&rec.TimeSpentSeconds, &rec.Notes, &rec.CompletedAt, &rec.LastAccessed, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = progress.Status(status)
	return &rec, nil
}
