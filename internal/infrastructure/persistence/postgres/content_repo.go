package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/learnloop/learnloop-hub/internal/domain/content"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ContentRepository implements content.Repository using PostgreSQL.
type ContentRepository struct {
	conn *Connection
}

// NewContentRepository creates a new PostgreSQL content repository.
func NewContentRepository(conn *Connection) *ContentRepository {
	return &ContentRepository{conn: conn}
}

// GetByID retrieves a content item by ID.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*content.Item, error) {
	query := `
		SELECT id, title, content_type, points_reward, is_active, created_at
		FROM content_items
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	item, err := scanContentItem(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content by id: %w", err)
	}
	return item, nil
}

// ListActive returns all active content items.
func (r *ContentRepository) ListActive(ctx context.Context) ([]*content.Item, error) {
	query := `
		SELECT id, title, content_type, points_reward, is_active, created_at
		FROM content_items
		WHERE is_active
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var items []*content.Item
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanContentItem(row pgx.Row) (*content.Item, error) {
	var item content.Item
	var contentType string
	err := row.Scan(&item.ID, &item.Title, &contentType, &item.PointsReward, &item.Active, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.ContentType = content.ContentType(contentType)
	return &item, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuizRepository implements content.QuizRepository using PostgreSQL.
type QuizRepository struct {
	conn *Connection
}

// NewQuizRepository creates a new PostgreSQL quiz repository.
func NewQuizRepository(conn *Connection) *QuizRepository {
	return &QuizRepository{conn: conn}
}

// GetQuestions returns the quiz questions attached to a content item.
func (r *QuizRepository) GetQuestions(ctx context.Context, contentID string) ([]*content.QuizQuestion, error) {
	query := `
		SELECT id, content_id, question, options, correct_answer
		FROM quiz_questions
		WHERE content_id = $1
		ORDER BY id
	`

	rows, err := r.conn.Query(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	var questions []*content.QuizQuestion
	for rows.Next() {
		var q content.QuizQuestion
		if err := rows.Scan(&q.ID, &q.ContentID, &q.Question, &q.Options, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("failed to scan quiz question: %w", err)
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}

// SaveAnswer upserts the user's answer to a question. A retried
// submission overwrites the previous answer instead of duplicating it.
func (r *QuizRepository) SaveAnswer(ctx context.Context, answer *content.QuizAnswer) error {
	query := `
		INSERT INTO quiz_answers (user_id, question_id, content_id, selected_answer, is_correct, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, question_id) DO UPDATE
		SET selected_answer = EXCLUDED.selected_answer,
			is_correct = EXCLUDED.is_correct,
			answered_at = EXCLUDED.answered_at
	`

	_, err := r.conn.Exec(ctx, query,
		answer.UserID, answer.QuestionID, answer.ContentID,
		answer.SelectedAnswer, answer.IsCorrect, answer.AnsweredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save quiz answer: %w", err)
	}
	return nil
}

// SaveResult upserts the attempt outcome and reports whether this attempt
// first flipped the stored result to passed. A later attempt replaces the
// earlier one; a passing attempt keeps its completed_at once set, so the
// RETURNING comparison is true for exactly one attempt per (user, content).
func (r *QuizRepository) SaveResult(ctx context.Context, result *content.QuizResult) (bool, error) {
	query := `
		INSERT INTO quiz_results (user_id, content_id, questions_answered,
			questions_correct, total_questions, passed, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, content_id) DO UPDATE
		SET questions_answered = EXCLUDED.questions_answered,
			questions_correct = EXCLUDED.questions_correct,
			total_questions = EXCLUDED.total_questions,
			passed = quiz_results.passed OR EXCLUDED.passed,
			completed_at = CASE
				WHEN quiz_results.passed THEN quiz_results.completed_at
				ELSE EXCLUDED.completed_at
			END
		RETURNING passed AND completed_at IS NOT DISTINCT FROM $7
	`

	var firstPass bool
	err := r.conn.QueryRow(ctx, query,
		result.UserID, result.ContentID, result.QuestionsAnswered,
		result.QuestionsCorrect, result.TotalQuestions, result.Passed, result.CompletedAt,
	).Scan(&firstPass)
	if err != nil {
		return false, fmt.Errorf("failed to save quiz result: %w", err)
	}
	return firstPass && result.CompletedAt != nil, nil
}
