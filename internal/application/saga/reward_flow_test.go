package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes. They reproduce the storage-layer guarantees the saga relies
// on: atomic point addition, level-only-raises, grant-if-absent, and the
// conditional challenge advance.
// ─────────────────────────────────────────────────────────────────────────────

type fakeUserRepo struct {
	users map[string]*user.User
}

func newFakeUserRepo(users ...*user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*user.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) AddPoints(_ context.Context, id string, delta user.Points) (user.Points, error) {
	u, ok := r.users[id]
	if !ok {
		return 0, shared.ErrUserNotFound
	}
	u.TotalPoints = u.TotalPoints.Add(delta)
	return u.TotalPoints, nil
}

func (r *fakeUserRepo) SetLevelIfHigher(_ context.Context, id string, level user.Level) (bool, error) {
	u, ok := r.users[id]
	if !ok {
		return false, shared.ErrUserNotFound
	}
	if level <= u.Level {
		return false, nil
	}
	u.Level = level
	return true, nil
}

func (r *fakeUserRepo) CountWithMorePoints(_ context.Context, id string) (int, error) {
	u, ok := r.users[id]
	if !ok {
		return 0, shared.ErrUserNotFound
	}
	count := 0
	for _, other := range r.users {
		if other.TotalPoints > u.TotalPoints {
			count++
		}
	}
	return count, nil
}

// fakeProgressDates serves the two progress reads the saga makes; the
// record-level methods delegate to a nil map and are never called here.
type fakeProgressDates struct {
	dates     []time.Time
	completed int
	timeSpent int
	datesErr  error
}

func (r *fakeProgressDates) Get(_ context.Context, _, _ string) (*progress.Record, error) {
	return nil, shared.ErrProgressNotFound
}

func (r *fakeProgressDates) GetOrCreate(_ context.Context, userID, contentID string, now time.Time) (*progress.Record, error) {
	return progress.NewRecord(userID, contentID, now), nil
}

func (r *fakeProgressDates) Save(_ context.Context, _ *progress.Record) (bool, error) {
	return false, nil
}

func (r *fakeProgressDates) ListForUser(_ context.Context, _ string) ([]*progress.Record, error) {
	return nil, nil
}

func (r *fakeProgressDates) CountCompleted(_ context.Context, _ string) (int, error) {
	return r.completed, nil
}

func (r *fakeProgressDates) RecentAccessDates(_ context.Context, _ string, _ int) ([]time.Time, error) {
	if r.datesErr != nil {
		return nil, r.datesErr
	}
	return r.dates, nil
}

func (r *fakeProgressDates) TotalTimeSpent(_ context.Context, _ string) (int, error) {
	return r.timeSpent, nil
}

type fakeBadgeRepo struct {
	catalog []*badge.Badge
	granted map[string]map[string]struct{} // userID -> badgeID
}

func newFakeBadgeRepo(catalog ...*badge.Badge) *fakeBadgeRepo {
	return &fakeBadgeRepo{catalog: catalog, granted: make(map[string]map[string]struct{})}
}

func (r *fakeBadgeRepo) GetByID(_ context.Context, id string) (*badge.Badge, error) {
	for _, b := range r.catalog {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, shared.ErrBadgeNotFound
}

func (r *fakeBadgeRepo) ListActive(_ context.Context) ([]*badge.Badge, error) {
	active := make([]*badge.Badge, 0, len(r.catalog))
	for _, b := range r.catalog {
		if b.Active {
			active = append(active, b)
		}
	}
	return active, nil
}

func (r *fakeBadgeRepo) ListGrantedIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for id := range r.granted[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *fakeBadgeRepo) GrantIfAbsent(_ context.Context, userID, badgeID string) (bool, error) {
	if r.granted[userID] == nil {
		r.granted[userID] = make(map[string]struct{})
	}
	if _, ok := r.granted[userID][badgeID]; ok {
		return false, nil
	}
	r.granted[userID][badgeID] = struct{}{}
	return true, nil
}

func (r *fakeBadgeRepo) ListUserBadges(_ context.Context, userID string) ([]*badge.UserBadge, []*badge.Badge, error) {
	var grants []*badge.UserBadge
	var badges []*badge.Badge
	for id := range r.granted[userID] {
		grants = append(grants, &badge.UserBadge{UserID: userID, BadgeID: id})
		if b, err := r.GetByID(context.Background(), id); err == nil {
			badges = append(badges, b)
		}
	}
	return grants, badges, nil
}

type fakeChallengeRepo struct {
	challenges     map[string]*challenge.Challenge
	participations map[string]*challenge.UserChallenge // keyed by participation ID
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{
		challenges:     make(map[string]*challenge.Challenge),
		participations: make(map[string]*challenge.UserChallenge),
	}
}

func (r *fakeChallengeRepo) addChallenge(c *challenge.Challenge) {
	r.challenges[c.ID] = c
}

func (r *fakeChallengeRepo) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	c, ok := r.challenges[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return c, nil
}

func (r *fakeChallengeRepo) ListAvailable(_ context.Context, at time.Time) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	for _, c := range r.challenges {
		if c.IsAcceptable(at) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) Accept(_ context.Context, uc *challenge.UserChallenge) error {
	for _, existing := range r.participations {
		if existing.UserID == uc.UserID && existing.ChallengeID == uc.ChallengeID {
			return shared.ErrChallengeAccepted
		}
	}
	copied := *uc
	r.participations[uc.ID] = &copied
	return nil
}

func (r *fakeChallengeRepo) ListActiveForUser(_ context.Context, userID string) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	var ucs []*challenge.UserChallenge
	var cs []*challenge.Challenge
	for _, uc := range r.participations {
		if uc.UserID == userID && uc.Status == challenge.UserChallengeActive {
			ucs = append(ucs, uc)
			cs = append(cs, r.challenges[uc.ChallengeID])
		}
	}
	return ucs, cs, nil
}

func (r *fakeChallengeRepo) ListForUser(_ context.Context, userID string) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	var ucs []*challenge.UserChallenge
	var cs []*challenge.Challenge
	for _, uc := range r.participations {
		if uc.UserID == userID {
			ucs = append(ucs, uc)
			cs = append(cs, r.challenges[uc.ChallengeID])
		}
	}
	return ucs, cs, nil
}

func (r *fakeChallengeRepo) Advance(_ context.Context, userChallengeID string, at time.Time) (*challenge.UserChallenge, bool, error) {
	uc, ok := r.participations[userChallengeID]
	if !ok {
		return nil, false, shared.ErrChallengeNotAccepted
	}
	c := r.challenges[uc.ChallengeID]
	completed, err := uc.Advance(c, at)
	if err != nil {
		return uc, false, err
	}
	return uc, completed, nil
}

func (r *fakeChallengeRepo) ExpireOverdue(_ context.Context, at time.Time) (int, error) {
	n := 0
	for _, uc := range r.participations {
		c := r.challenges[uc.ChallengeID]
		if uc.Status == challenge.UserChallengeActive && c.IsExpired(at) {
			uc.Status = challenge.UserChallengeExpired
			n++
		}
	}
	return n, nil
}

type capturingBus struct {
	events []shared.Event
}

func (b *capturingBus) Publish(event shared.Event) error {
	b.events = append(b.events, event)
	return nil
}

func (b *capturingBus) typesSeen() map[shared.EventType]int {
	seen := make(map[shared.EventType]int)
	for _, e := range b.events {
		seen[e.EventType()]++
	}
	return seen
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func testUser(id string, points int, level int) *user.User {
	return &user.User{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "Test User",
		TotalPoints: user.Points(points),
		Level:       user.Level(level),
	}
}

func weekChallenge(id, objective string, target int, reward int, end time.Time) *challenge.Challenge {
	return &challenge.Challenge{
		ID:           id,
		Title:        "Challenge " + id,
		Objective:    shared.Objective(objective),
		TargetValue:  target,
		PointsReward: reward,
		StartDate:    end.AddDate(0, 0, -7),
		EndDate:      &end,
		Active:       true,
	}
}

func newTestSaga(
	users *fakeUserRepo,
	prog *fakeProgressDates,
	badges *fakeBadgeRepo,
	challenges *fakeChallengeRepo,
	bus *capturingBus,
) *RewardFlowSaga {
	return NewRewardFlowSaga(users, prog, badges, challenges, bus, nil, DefaultRewardFlowConfig())
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRewardFlow_RaisesLevelAndComputesStreak(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 110, 1))
	prog := &fakeProgressDates{dates: []time.Time{now, now.AddDate(0, 0, -1), now.AddDate(0, 0, -2)}}
	bus := &capturingBus{}

	s := newTestSaga(users, prog, newFakeBadgeRepo(), newFakeChallengeRepo(), bus)
	result, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "u1",
		EventToken: EventTokenContentComplete,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.NewLevel)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 3, result.CurrentStreak)
	assert.Equal(t, 1, bus.typesSeen()[shared.EventLevelUp])
	assert.Equal(t, 1, bus.typesSeen()[shared.EventStreakUpdated])
}

func TestRewardFlow_LevelNeverLowered(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	// Stored level is already ahead of what the points imply.
	users := newFakeUserRepo(testUser("u1", 110, 5))
	bus := &capturingBus{}

	s := newTestSaga(users, &fakeProgressDates{}, newFakeBadgeRepo(), newFakeChallengeRepo(), bus)
	result, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "u1",
		EventToken: EventTokenContentComplete,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.Equal(t, 5, result.NewLevel)
	assert.False(t, result.LeveledUp)
	assert.Zero(t, bus.typesSeen()[shared.EventLevelUp])
}

func TestRewardFlow_GrantsBadgeOnceWithBonus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 120, 2))
	badges := newFakeBadgeRepo(&badge.Badge{
		ID:               "b-100",
		Name:             "Centurion",
		RequirementKind:  badge.RequirementPoints,
		RequirementValue: 100,
		PointsReward:     25,
		Active:           true,
	})
	bus := &capturingBus{}

	s := newTestSaga(users, &fakeProgressDates{}, badges, newFakeChallengeRepo(), bus)
	input := RewardFlowInput{UserID: "u1", EventToken: EventTokenContentComplete, Timestamp: now}

	first, err := s.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, first.NewBadges, 1)
	assert.Equal(t, "b-100", first.NewBadges[0].ID)
	assert.Equal(t, 25, first.BonusPoints)

	again, err := s.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, again.NewBadges)
	assert.Zero(t, again.BonusPoints)
	assert.Equal(t, 1, bus.typesSeen()[shared.EventBadgeGranted])
}

func TestRewardFlow_GrantsAllEligibleBadgesRegardlessOfCatalogOrder(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	catalog := make([]*badge.Badge, 0, 7)
	for i := 0; i < 7; i++ {
		catalog = append(catalog, &badge.Badge{
			ID:               fmt.Sprintf("b-%d", i),
			Name:             fmt.Sprintf("Badge %d", i),
			RequirementKind:  badge.RequirementPoints,
			RequirementValue: 10 * (i + 1),
			Active:           true,
		})
	}
	reversed := make([]*badge.Badge, len(catalog))
	for i, b := range catalog {
		reversed[len(catalog)-1-i] = b
	}

	grantedWith := func(order []*badge.Badge) map[string]struct{} {
		users := newFakeUserRepo(testUser("u1", 500, 3))
		badges := newFakeBadgeRepo(order...)
		s := newTestSaga(users, &fakeProgressDates{}, badges, newFakeChallengeRepo(), &capturingBus{})

		result, err := s.Execute(context.Background(), RewardFlowInput{
			UserID:     "u1",
			EventToken: EventTokenContentComplete,
			Timestamp:  now,
		})
		require.NoError(t, err)
		require.Len(t, result.NewBadges, len(order))

		ids, err := badges.ListGrantedIDs(context.Background(), "u1")
		require.NoError(t, err)
		return ids
	}

	assert.Equal(t, grantedWith(catalog), grantedWith(reversed))
}

func TestRewardFlow_BonusCrossingLevelBoundaryRaisesLevel(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 90, 1))
	badges := newFakeBadgeRepo(&badge.Badge{
		ID:               "b-50",
		Name:             "Half Century",
		RequirementKind:  badge.RequirementPoints,
		RequirementValue: 50,
		PointsReward:     20,
		Active:           true,
	})
	bus := &capturingBus{}

	s := newTestSaga(users, &fakeProgressDates{}, badges, newFakeChallengeRepo(), bus)
	result, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "u1",
		EventToken: EventTokenContentComplete,
		Timestamp:  now,
	})

	require.NoError(t, err)
	// 90 + 20 bonus = 110 points, so the post-bonus re-check must raise the level.
	assert.Equal(t, 20, result.BonusPoints)
	assert.Equal(t, 2, result.NewLevel)
	assert.True(t, result.LeveledUp)
}

func TestRewardFlow_CompletesChallengeOnTarget(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 10, 1))
	challenges := newFakeChallengeRepo()
	c := weekChallenge("ch1", "weekly content_complete sprint", 2, 200, now.AddDate(0, 0, 3))
	challenges.addChallenge(c)
	uc := challenge.NewUserChallenge("uc1", "u1", "ch1", now.AddDate(0, 0, -1))
	require.NoError(t, challenges.Accept(context.Background(), uc))
	bus := &capturingBus{}

	s := newTestSaga(users, &fakeProgressDates{}, newFakeBadgeRepo(), challenges, bus)
	input := RewardFlowInput{UserID: "u1", EventToken: EventTokenContentComplete, Timestamp: now}

	first, err := s.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, first.CompletedChallenges)

	second, err := s.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, second.CompletedChallenges, 1)
	assert.Equal(t, "ch1", second.CompletedChallenges[0].ID)
	assert.Equal(t, 200, second.BonusPoints)

	// Completed participations are terminal.
	third, err := s.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, third.CompletedChallenges)
	assert.Equal(t, 1, bus.typesSeen()[shared.EventChallengeCompleted])
}

func TestRewardFlow_IgnoresNonMatchingObjective(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 10, 1))
	challenges := newFakeChallengeRepo()
	challenges.addChallenge(weekChallenge("ch1", "quiz_passed marathon", 1, 100, now.AddDate(0, 0, 3)))
	uc := challenge.NewUserChallenge("uc1", "u1", "ch1", now.AddDate(0, 0, -1))
	require.NoError(t, challenges.Accept(context.Background(), uc))

	s := newTestSaga(users, &fakeProgressDates{}, newFakeBadgeRepo(), challenges, &capturingBus{})
	result, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "u1",
		EventToken: EventTokenContentComplete,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.Empty(t, result.CompletedChallenges)
	assert.Zero(t, result.BonusPoints)
}

func TestRewardFlow_ExpiredChallengeSkippedAtEventTime(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 10, 1))
	challenges := newFakeChallengeRepo()
	challenges.addChallenge(weekChallenge("ch1", "content_complete", 1, 100, now.AddDate(0, 0, -1)))
	uc := challenge.NewUserChallenge("uc1", "u1", "ch1", now.AddDate(0, 0, -5))
	require.NoError(t, challenges.Accept(context.Background(), uc))

	s := newTestSaga(users, &fakeProgressDates{}, newFakeBadgeRepo(), challenges, &capturingBus{})
	result, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "u1",
		EventToken: EventTokenContentComplete,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.Empty(t, result.CompletedChallenges)
}

func TestRewardFlow_UserNotFoundIsCritical(t *testing.T) {
	s := newTestSaga(newFakeUserRepo(), &fakeProgressDates{}, newFakeBadgeRepo(), newFakeChallengeRepo(), &capturingBus{})
	_, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "ghost",
		EventToken: EventTokenContentComplete,
		Timestamp:  time.Now().UTC(),
	})

	require.Error(t, err)
	var flowErr *RewardFlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, StepLoadUser, flowErr.Step)
	assert.True(t, errors.Is(err, shared.ErrUserNotFound))
}

func TestRewardFlow_StreakFailureDoesNotAbortFlow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	users := newFakeUserRepo(testUser("u1", 110, 1))
	prog := &fakeProgressDates{datesErr: errors.New("store down")}

	s := newTestSaga(users, prog, newFakeBadgeRepo(), newFakeChallengeRepo(), &capturingBus{})
	result, err := s.Execute(context.Background(), RewardFlowInput{
		UserID:     "u1",
		EventToken: EventTokenContentComplete,
		Timestamp:  now,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.NewLevel)
	assert.Zero(t, result.CurrentStreak)
}
