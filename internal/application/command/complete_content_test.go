package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/content"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
)

type completeContentEnv struct {
	users      *memUserRepo
	contents   *memContentRepo
	progresses *memProgressRepo
	badges     *memBadgeRepo
	challenges *memChallengeRepo
	bus        *recordingBus
	handler    *CompleteContentHandler
}

func newCompleteContentEnv(u *user.User, items ...*content.Item) *completeContentEnv {
	env := &completeContentEnv{
		users:      newMemUserRepo(u),
		contents:   newMemContentRepo(items...),
		progresses: newMemProgressRepo(),
		badges:     newMemBadgeRepo(),
		challenges: newMemChallengeRepo(),
		bus:        &recordingBus{},
	}
	flow := saga.NewRewardFlowSaga(
		env.users, env.progresses, env.badges, env.challenges,
		env.bus, nil, saga.DefaultRewardFlowConfig(),
	)
	env.handler = NewCompleteContentHandler(
		env.users, env.contents, env.progresses, flow, env.bus, nil,
	)
	return env
}

func lesson(id string, reward int) *content.Item {
	return &content.Item{ID: id, Title: "Lesson " + id, ContentType: content.TypeArticle, PointsReward: reward, Active: true}
}

func learner(id string, points, level int) *user.User {
	return &user.User{ID: id, Email: id + "@example.com", DisplayName: "Learner", TotalPoints: user.Points(points), Level: user.Level(level)}
}

func TestCompleteContent_FirstCompletionAwardsAndLevels(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newCompleteContentEnv(learner("u1", 90, 1), lesson("c1", 20))

	result, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "c1",
		Status:     progress.StatusCompleted,
		Percentage: 100,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.True(t, result.FirstCompletion)
	assert.Equal(t, 20, result.PointsAwarded)
	assert.Equal(t, 110, result.TotalPoints)
	assert.Equal(t, 2, result.Level)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.Equal(t, 1, env.bus.count(shared.EventContentCompleted))
	assert.Equal(t, 1, env.bus.count(shared.EventLevelUp))
}

func TestCompleteContent_RepeatCompletionIsNoop(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newCompleteContentEnv(learner("u1", 0, 1), lesson("c1", 20))
	cmd := CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "c1",
		Status:     progress.StatusCompleted,
		Percentage: 100,
		Timestamp:  now,
	}

	first, err := env.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.True(t, first.FirstCompletion)

	cmd.Timestamp = now.Add(time.Hour)
	second, err := env.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.False(t, second.FirstCompletion)
	assert.Zero(t, second.PointsAwarded)
	assert.Equal(t, 20, second.TotalPoints)
	assert.Equal(t, 1, env.bus.count(shared.EventContentCompleted))

	u, err := env.users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, u.TotalPoints.Int())
}

func TestCompleteContent_InProgressUpdateDoesNotAward(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newCompleteContentEnv(learner("u1", 0, 1), lesson("c1", 20))

	result, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:         "u1",
		ContentID:      "c1",
		Status:         progress.StatusInProgress,
		Percentage:     40,
		TimeSpentDelta: 120,
		Timestamp:      now,
	})

	require.NoError(t, err)
	assert.False(t, result.FirstCompletion)
	assert.Zero(t, result.PointsAwarded)
	assert.Equal(t, progress.StatusInProgress, result.Record.Status)
	assert.Equal(t, 40, result.Record.ProgressPercentage)
	assert.Zero(t, env.bus.count(shared.EventContentCompleted))
}

func TestCompleteContent_DefaultRewardWhenContentHasNone(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newCompleteContentEnv(learner("u1", 0, 1), lesson("c1", 0))

	result, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "c1",
		Status:     progress.StatusCompleted,
		Percentage: 100,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.Equal(t, content.DefaultPointsReward, result.PointsAwarded)
}

func TestCompleteContent_UnknownContentFails(t *testing.T) {
	env := newCompleteContentEnv(learner("u1", 0, 1))

	_, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "ghost",
		Status:     progress.StatusCompleted,
		Percentage: 100,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrContentNotFound))
}

func TestCompleteContent_UnknownUserFails(t *testing.T) {
	env := newCompleteContentEnv(learner("u1", 0, 1), lesson("c1", 10))

	_, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "ghost",
		ContentID:  "c1",
		Status:     progress.StatusCompleted,
		Percentage: 100,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUserNotFound))
}

func TestCompleteContent_InvalidPercentageRejected(t *testing.T) {
	env := newCompleteContentEnv(learner("u1", 0, 1), lesson("c1", 10))

	_, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "c1",
		Status:     progress.StatusInProgress,
		Percentage: 140,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidPercentage))
}

func TestCompleteContent_CompletionGrantsEligibleBadge(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	env := newCompleteContentEnv(learner("u1", 0, 1), lesson("c1", 10))
	env.badges.catalog = append(env.badges.catalog, &badge.Badge{
		ID:               "first-steps",
		Name:             "Первые шаги",
		RequirementKind:  badge.RequirementContentComplete,
		RequirementValue: 1,
		PointsReward:     5,
		Active:           true,
	})

	result, err := env.handler.Handle(context.Background(), CompleteContentCommand{
		UserID:     "u1",
		ContentID:  "c1",
		Status:     progress.StatusCompleted,
		Percentage: 100,
		Timestamp:  now,
	})

	require.NoError(t, err)
	require.Len(t, result.NewBadges, 1)
	assert.Equal(t, "first-steps", result.NewBadges[0].ID)
	// Base 10 + badge bonus 5.
	assert.Equal(t, 15, result.TotalPoints)
	assert.Equal(t, 1, env.bus.count(shared.EventBadgeGranted))
}
