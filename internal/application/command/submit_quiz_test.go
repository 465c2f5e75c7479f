package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/content"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

type quizEnv struct {
	*completeContentEnv
	quizzes *memQuizRepo
	handler *SubmitQuizHandler
}

func newQuizEnv(t *testing.T) *quizEnv {
	t.Helper()
	base := newCompleteContentEnv(learner("u1", 0, 1), lesson("q1", 30))
	quizzes := newMemQuizRepo()
	quizzes.questions["q1"] = []*content.QuizQuestion{
		{ID: "qq1", ContentID: "q1", Question: "2+2?", CorrectAnswer: "4"},
		{ID: "qq2", ContentID: "q1", Question: "Capital of France?", CorrectAnswer: "Paris"},
	}
	return &quizEnv{
		completeContentEnv: base,
		quizzes:            quizzes,
		handler: NewSubmitQuizHandler(
			quizzes, base.users, base.handler, base.bus, nil, DefaultQuizBonusPoints,
		),
	}
}

func TestSubmitQuiz_PerfectScoreCompletesAndPaysBonus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newQuizEnv(t)

	result, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
		Answers:   map[string]string{"qq1": "4", "qq2": "paris"},
		Timestamp: now,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, 2, result.Total)
	assert.True(t, result.Passed)
	assert.Equal(t, DefaultQuizBonusPoints, result.BonusAwarded)
	require.NotNil(t, result.Completion)
	assert.True(t, result.Completion.FirstCompletion)
	assert.Equal(t, 30, result.Completion.PointsAwarded)
	// Base 30 + quiz bonus 50.
	assert.Equal(t, 80, result.Completion.TotalPoints)
	assert.Equal(t, 1, env.bus.count(shared.EventQuizPassed))
}

func TestSubmitQuiz_WrongAnswerFailsWithoutSideEffects(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newQuizEnv(t)

	result, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
		Answers:   map[string]string{"qq1": "4", "qq2": "London"},
		Timestamp: now,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.False(t, result.Passed)
	assert.Zero(t, result.BonusAwarded)
	assert.Nil(t, result.Completion)

	u, err := env.users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, u.TotalPoints.Int())
	assert.Zero(t, env.bus.count(shared.EventQuizPassed))
}

func TestSubmitQuiz_MissingAnswerCountsAsWrong(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newQuizEnv(t)

	result, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
		Answers:   map[string]string{"qq1": "4"},
		Timestamp: now,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.False(t, result.Passed)
}

func TestSubmitQuiz_RepeatPassPaysBonusOnce(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newQuizEnv(t)
	cmd := SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
		Answers:   map[string]string{"qq1": "4", "qq2": "Paris"},
		Timestamp: now,
	}

	first, err := env.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, first.Passed)
	require.Equal(t, DefaultQuizBonusPoints, first.BonusAwarded)

	cmd.Timestamp = now.Add(time.Hour)
	second, err := env.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, second.Passed)
	assert.Zero(t, second.BonusAwarded)
	require.NotNil(t, second.Completion)
	assert.False(t, second.Completion.FirstCompletion)

	u, err := env.users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 80, u.TotalPoints.Int())
	assert.Equal(t, 1, env.bus.count(shared.EventQuizPassed))
}

func TestSubmitQuiz_FirstPassAfterPriorCompletionStillPaysBonus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newQuizEnv(t)

	// The content is completed through the regular progress path first.
	completion, err := env.completeContentEnv.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "q1",
		Status:     progress.StatusCompleted,
		Percentage: 100,
		Timestamp:  now,
	})
	require.NoError(t, err)
	require.True(t, completion.FirstCompletion)

	// The first quiz pass is no longer a first completion, but the flat
	// bonus keys on the first pass, not on the completion.
	result, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
		Answers:   map[string]string{"qq1": "4", "qq2": "Paris"},
		Timestamp: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, result.Passed)
	require.NotNil(t, result.Completion)
	assert.False(t, result.Completion.FirstCompletion)
	assert.Equal(t, DefaultQuizBonusPoints, result.BonusAwarded)
	assert.Equal(t, 1, env.bus.count(shared.EventQuizPassed))

	// Base 30 for the completion + bonus 50 for the pass.
	u, err := env.users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 80, u.TotalPoints.Int())

	// A repeat pass pays nothing further.
	again, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
		Answers:   map[string]string{"qq1": "4", "qq2": "Paris"},
		Timestamp: now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Zero(t, again.BonusAwarded)
}

func TestSubmitQuiz_UnknownQuizFails(t *testing.T) {
	env := newQuizEnv(t)

	_, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "ghost",
		Answers:   map[string]string{"qq1": "4"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrContentNotFound))
}

func TestSubmitQuiz_EmptyAnswersRejected(t *testing.T) {
	env := newQuizEnv(t)

	_, err := env.handler.Handle(context.Background(), SubmitQuizCommand{
		UserID:    "u1",
		ContentID: "q1",
	})

	require.Error(t, err)
}
