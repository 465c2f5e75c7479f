package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/content"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ COMMAND
// Grades a quiz attempt. A fully correct attempt marks the content completed
// (through the same first-completion guard as any other completion) and pays
// a flat bonus on top of the content's own reward. The bonus is a separate
// reward rule with its own default - it is NOT the content's PointsReward.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultQuizBonusPoints is the flat bonus for a fully correct attempt.
const DefaultQuizBonusPoints = 50

// SubmitQuizCommand contains one quiz attempt.
type SubmitQuizCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// ContentID is the quiz content item.
	ContentID string

	// Answers maps question ID to the selected answer.
	Answers map[string]string

	// Timestamp is when the attempt arrived (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitQuizCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if _, err := shared.NewContentID(c.ContentID); err != nil {
		return err
	}
	if len(c.Answers) == 0 {
		return errors.New("submit_quiz: answers are required")
	}
	return nil
}

// SubmitQuizResult contains the graded attempt.
type SubmitQuizResult struct {
	// UserID is the internal ID of the user.
	UserID string

	// ContentID is the quiz content item.
	ContentID string

	// Score is the number of correct answers.
	Score int

	// Total is the number of questions in the quiz.
	Total int

	// Passed indicates every question was answered correctly.
	Passed bool

	// BonusAwarded is the flat bonus paid (0 unless Passed and first pass).
	BonusAwarded int

	// Completion carries the progress-side result when the pass completed
	// the content. Nil for failed attempts.
	Completion *CompleteContentResult
}

// SubmitQuizHandler handles the SubmitQuizCommand.
type SubmitQuizHandler struct {
	quizRepo        content.QuizRepository
	userRepo        user.Repository
	completeContent *CompleteContentHandler
	eventBus        shared.EventPublisher
	log             *logger.Logger

	bonusPoints int
}

// NewSubmitQuizHandler creates a new SubmitQuizHandler.
// bonusPoints <= 0 falls back to DefaultQuizBonusPoints.
func NewSubmitQuizHandler(
	quizRepo content.QuizRepository,
	userRepo user.Repository,
	completeContent *CompleteContentHandler,
	eventBus shared.EventPublisher,
	log *logger.Logger,
	bonusPoints int,
) *SubmitQuizHandler {
	if log == nil {
		log = logger.Default()
	}
	if bonusPoints <= 0 {
		bonusPoints = DefaultQuizBonusPoints
	}
	return &SubmitQuizHandler{
		quizRepo:        quizRepo,
		userRepo:        userRepo,
		completeContent: completeContent,
		eventBus:        eventBus,
		log:             log.With(logger.Component("submit_quiz")),
		bonusPoints:     bonusPoints,
	}
}

// Handle executes the submit quiz command.
func (h *SubmitQuizHandler) Handle(ctx context.Context, cmd SubmitQuizCommand) (*SubmitQuizResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_quiz: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	questions, err := h.quizRepo.GetQuestions(ctx, cmd.ContentID)
	if err != nil {
		return nil, fmt.Errorf("submit_quiz: failed to load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, shared.ErrContentNotFound
	}

	result := &SubmitQuizResult{
		UserID:    cmd.UserID,
		ContentID: cmd.ContentID,
		Total:     len(questions),
	}

	for _, q := range questions {
		selected, answered := cmd.Answers[q.ID]
		correct := answered && q.IsCorrect(selected)
		if correct {
			result.Score++
		}

		answer := &content.QuizAnswer{
			UserID:         cmd.UserID,
			ContentID:      cmd.ContentID,
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			IsCorrect:      correct,
			AnsweredAt:     timestamp,
		}
		if err := h.quizRepo.SaveAnswer(ctx, answer); err != nil {
			h.log.Warn("quiz answer save failed",
				logger.UserID(cmd.UserID), logger.ContentID(cmd.ContentID), logger.Err(err))
		}
	}

	result.Passed = result.Score == result.Total

	attempt := &content.QuizResult{
		UserID:            cmd.UserID,
		ContentID:         cmd.ContentID,
		QuestionsAnswered: len(cmd.Answers),
		QuestionsCorrect:  result.Score,
		TotalQuestions:    result.Total,
		Passed:            result.Passed,
	}
	if result.Passed {
		attempt.CompletedAt = &timestamp
	}
	firstPass, err := h.quizRepo.SaveResult(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("submit_quiz: failed to save attempt: %w", err)
	}

	if !result.Passed {
		return result, nil
	}

	// A pass completes the content through the regular dispatcher, so the
	// first-completion guard, base award, and reward flow all apply.
	completion, err := h.completeContent.Handle(ctx, CompleteContentCommand{
		UserID:        cmd.UserID,
		ContentID:     cmd.ContentID,
		Status:        progress.StatusCompleted,
		Percentage:    100,
		Timestamp:     timestamp,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, fmt.Errorf("submit_quiz: completion failed: %w", err)
	}
	result.Completion = completion

	// The flat bonus is paid exactly once per (user, content): on the attempt
	// that first flipped the stored quiz result to passed. Completing the
	// content some other way beforehand does not forfeit it.
	if firstPass {
		newTotal, err := h.userRepo.AddPoints(ctx, cmd.UserID, user.Points(h.bonusPoints))
		if err != nil {
			h.log.Error("quiz bonus award failed",
				logger.UserID(cmd.UserID), logger.ContentID(cmd.ContentID), logger.Err(err))
		} else {
			result.BonusAwarded = h.bonusPoints
			completion.TotalPoints = newTotal.Int()

			if h.eventBus != nil {
				event := shared.NewQuizPassedEvent(cmd.UserID, cmd.ContentID, result.Score, result.Total, h.bonusPoints)
				if cmd.CorrelationID != "" {
					event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
				}
				if err := h.eventBus.Publish(event); err != nil {
					h.log.Warn("event publish failed",
						logger.String("event_type", string(shared.EventQuizPassed)), logger.Err(err))
				}
			}
		}
	}

	return result, nil
}
