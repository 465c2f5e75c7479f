package eventhandler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/notification"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeNotificationRepo struct {
	saved []*notification.Notification
}

func (r *fakeNotificationRepo) Save(_ context.Context, n *notification.Notification) error {
	r.saved = append(r.saved, n)
	return nil
}

func (r *fakeNotificationRepo) ListForUser(_ context.Context, userID string, limit int) ([]*notification.Notification, error) {
	out := make([]*notification.Notification, 0, len(r.saved))
	for _, n := range r.saved {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (r *fakeNotificationRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// fakeChallengeRepo only answers GetByID; the embedded interface covers the
// methods this handler never touches.
type fakeChallengeRepo struct {
	challenge.Repository
	byID map[string]*challenge.Challenge
}

func (r *fakeChallengeRepo) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return c, nil
}

type sequenceIDs struct{ n int }

func (g *sequenceIDs) GenerateID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// ─────────────────────────────────────────────────────────────────────────────
// OnBadgeGranted
// ─────────────────────────────────────────────────────────────────────────────

func TestOnBadgeGranted_CreatesNotification(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnBadgeGrantedHandler(repo, &sequenceIDs{}, nil, DefaultBadgeGrantedConfig())

	err := h.Handle(shared.NewBadgeGrantedEvent("user-1", "badge-1", "Первые шаги", 25))
	require.NoError(t, err)

	require.Len(t, repo.saved, 1)
	n := repo.saved[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, notification.NotificationTypeBadgeGranted, n.Type)
	assert.Contains(t, n.Message, "Первые шаги")
	assert.Contains(t, n.Message, "+25")
}

func TestOnBadgeGranted_GateSuppresses(t *testing.T) {
	repo := &fakeNotificationRepo{}
	cfg := DefaultBadgeGrantedConfig()
	cfg.Gate = func(userID string) bool { return false }
	h := NewOnBadgeGrantedHandler(repo, &sequenceIDs{}, nil, cfg)

	require.NoError(t, h.Handle(shared.NewBadgeGrantedEvent("user-1", "badge-1", "Первые шаги", 0)))
	assert.Empty(t, repo.saved)
}

func TestOnBadgeGranted_IgnoresForeignEvent(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnBadgeGrantedHandler(repo, &sequenceIDs{}, nil, DefaultBadgeGrantedConfig())

	require.NoError(t, h.Handle(shared.NewLevelUpEvent("user-1", 1, 2)))
	assert.Empty(t, repo.saved)
}

// ─────────────────────────────────────────────────────────────────────────────
// OnContentCompleted
// ─────────────────────────────────────────────────────────────────────────────

func TestOnContentCompleted_CreatesNotification(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnContentCompletedHandler(repo, &sequenceIDs{}, nil, DefaultContentCompletedConfig())

	err := h.Handle(shared.NewContentCompletedEvent("user-1", "content-1", 20))
	require.NoError(t, err)

	require.Len(t, repo.saved, 1)
	n := repo.saved[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, notification.NotificationTypeContentCompleted, n.Type)
	assert.Contains(t, n.Message, "+20")
}

func TestOnContentCompleted_GateSuppresses(t *testing.T) {
	repo := &fakeNotificationRepo{}
	cfg := DefaultContentCompletedConfig()
	cfg.Gate = func(userID string) bool { return false }
	h := NewOnContentCompletedHandler(repo, &sequenceIDs{}, nil, cfg)

	require.NoError(t, h.Handle(shared.NewContentCompletedEvent("user-1", "content-1", 20)))
	assert.Empty(t, repo.saved)
}

func TestOnContentCompleted_IgnoresForeignEvent(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnContentCompletedHandler(repo, &sequenceIDs{}, nil, DefaultContentCompletedConfig())

	require.NoError(t, h.Handle(shared.NewLevelUpEvent("user-1", 1, 2)))
	assert.Empty(t, repo.saved)
}

// ─────────────────────────────────────────────────────────────────────────────
// OnLevelUp
// ─────────────────────────────────────────────────────────────────────────────

func TestOnLevelUp_SkipsBelowMinLevel(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnLevelUpHandler(repo, &sequenceIDs{}, nil, DefaultLevelUpConfig())

	// Level 1 is the starting level.
	require.NoError(t, h.Handle(shared.NewLevelUpEvent("user-1", 0, 1)))
	assert.Empty(t, repo.saved)

	require.NoError(t, h.Handle(shared.NewLevelUpEvent("user-1", 1, 2)))
	require.Len(t, repo.saved, 1)
	assert.Equal(t, notification.NotificationTypeLevelUp, repo.saved[0].Type)
	assert.Contains(t, repo.saved[0].Message, "Level 2")
}

// ─────────────────────────────────────────────────────────────────────────────
// OnChallengeCompleted
// ─────────────────────────────────────────────────────────────────────────────

func TestOnChallengeCompleted_UsesChallengeTitle(t *testing.T) {
	repo := &fakeNotificationRepo{}
	challenges := &fakeChallengeRepo{byID: map[string]*challenge.Challenge{
		"ch-1": {ID: "ch-1", Title: "Неделя статей"},
	}}
	h := NewOnChallengeCompletedHandler(repo, challenges, &sequenceIDs{}, nil, ChallengeCompletedConfig{})

	require.NoError(t, h.Handle(shared.NewChallengeCompletedEvent("user-1", "ch-1", 50)))

	require.Len(t, repo.saved, 1)
	assert.Contains(t, repo.saved[0].Message, "Неделя статей")
	assert.Contains(t, repo.saved[0].Message, "+50")
}

func TestOnChallengeCompleted_FallsBackToIDWhenLookupFails(t *testing.T) {
	repo := &fakeNotificationRepo{}
	challenges := &fakeChallengeRepo{byID: map[string]*challenge.Challenge{}}
	h := NewOnChallengeCompletedHandler(repo, challenges, &sequenceIDs{}, nil, ChallengeCompletedConfig{})

	require.NoError(t, h.Handle(shared.NewChallengeCompletedEvent("user-1", "ch-missing", 0)))

	require.Len(t, repo.saved, 1)
	assert.Contains(t, repo.saved[0].Message, "ch-missing")
}

// ─────────────────────────────────────────────────────────────────────────────
// OnStreakUpdated
// ─────────────────────────────────────────────────────────────────────────────

func TestOnStreakUpdated_OnlyMilestonesAnnounced(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnStreakUpdatedHandler(repo, &sequenceIDs{}, nil, DefaultStreakMilestoneConfig())

	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("user-1", 2)))
	assert.Empty(t, repo.saved)

	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("user-1", 7)))
	require.Len(t, repo.saved, 1)
	assert.Equal(t, notification.NotificationTypeStreakMilestone, repo.saved[0].Type)
}

func TestOnStreakUpdated_SameDayDuplicateSuppressed(t *testing.T) {
	repo := &fakeNotificationRepo{}
	h := NewOnStreakUpdatedHandler(repo, &sequenceIDs{}, nil, DefaultStreakMilestoneConfig())

	// The streak is recomputed on every dispatch, so the same milestone
	// value arrives repeatedly within a day.
	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("user-1", 3)))
	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("user-1", 3)))

	assert.Len(t, repo.saved, 1)
}
