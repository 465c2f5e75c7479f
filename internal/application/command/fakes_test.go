package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/content"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes shared by the command tests. The progress fake reproduces
// the conditional completed_at write, the badge fake the ON CONFLICT guard,
// and the challenge fake the unique (user, challenge) constraint - the three
// storage guarantees the handlers lean on.
// ─────────────────────────────────────────────────────────────────────────────

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newMemUserRepo(users ...*user.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*user.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) AddPoints(_ context.Context, id string, delta user.Points) (user.Points, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, shared.ErrUserNotFound
	}
	u.TotalPoints = u.TotalPoints.Add(delta)
	return u.TotalPoints, nil
}

func (r *memUserRepo) SetLevelIfHigher(_ context.Context, id string, level user.Level) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memUserRepo) CountWithMorePoints(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

type memContentRepo struct {
	items map[string]*content.Item
}

func newMemContentRepo(items ...*content.Item) *memContentRepo {
	r := &memContentRepo{items: make(map[string]*content.Item)}
	for _, i := range items {
		r.items[i.ID] = i
	}
	return r
}

func (r *memContentRepo) GetByID(_ context.Context, id string) (*content.Item, error) {
	i, ok := r.items[id]
	if !ok {
		return nil, shared.ErrContentNotFound
	}
	return i, nil
}

func (r *memContentRepo) ListActive(_ context.Context) ([]*content.Item, error) {
	var out []*content.Item
	for _, i := range r.items {
		if i.Active {
			out = append(out, i)
		}
	}
	return out, nil
}

type memProgressRepo struct {
	mu      sync.Mutex
	records map[string]*progress.Record
}

func newMemProgressRepo() *memProgressRepo {
	return &memProgressRepo{records: make(map[string]*progress.Record)}
}

func progressKey(userID, contentID string) string {
	return fmt.Sprintf("%s/%s", userID, contentID)
}

func (r *memProgressRepo) Get(_ context.Context, userID, contentID string) (*progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[progressKey(userID, contentID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *memProgressRepo) GetOrCreate(_ context.Context, userID, contentID string, now time.Time) (*progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(userID, contentID)
	if rec, ok := r.records[key]; ok {
		copied := *rec
		return &copied, nil
	}
	rec := progress.NewRecord(userID, contentID, now)
	stored := *rec
	r.records[key] = &stored
	copied := *rec
	return &copied, nil
}

// Save mirrors the conditional completed_at write: the flag is true only for
// the call that flips a stored nil CompletedAt to a value.
func (r *memProgressRepo) Save(_ context.Context, record *progress.Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(record.UserID, record.ContentID)
	stored := r.records[key]

	persistedCompletion := record.CompletedAt != nil && (stored == nil || stored.CompletedAt == nil)

	copied := *record
	if stored != nil && stored.CompletedAt != nil {
		// completed_at is write-once.
		copied.CompletedAt = stored.CompletedAt
	}
	r.records[key] = &copied
	return persistedCompletion, nil
}

func (r *memProgressRepo) ListForUser(_ context.Context, userID string) ([]*progress.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*progress.Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memProgressRepo) CountCompleted(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rec := range r.records {
		if rec.UserID == userID && rec.CompletedAt != nil {
			count++
		}
	}
	return count, nil
}

func (r *memProgressRepo) RecentAccessDates(_ context.Context, userID string, limit int) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Time
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec.LastAccessed)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memProgressRepo) TotalTimeSpent(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, rec := range r.records {
		if rec.UserID == userID && rec.CompletedAt != nil {
			total += rec.TimeSpentSeconds
		}
	}
	return total, nil
}

type memBadgeRepo struct {
	mu      sync.Mutex
	catalog []*badge.Badge
	granted map[string]map[string]time.Time
}

func newMemBadgeRepo(catalog ...*badge.Badge) *memBadgeRepo {
	return &memBadgeRepo{catalog: catalog, granted: make(map[string]map[string]time.Time)}
}

func (r *memBadgeRepo) GetByID(_ context.Context, id string) (*badge.Badge, error) {
	for _, b := range r.catalog {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, shared.ErrBadgeNotFound
}

func (r *memBadgeRepo) ListActive(_ context.Context) ([]*badge.Badge, error) {
	var out []*badge.Badge
	for _, b := range r.catalog {
		if b.Active {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memBadgeRepo) ListGrantedIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{})
	for id := range r.granted[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *memBadgeRepo) GrantIfAbsent(_ context.Context, userID, badgeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.granted[userID] == nil {
		r.granted[userID] = make(map[string]time.Time)
	}
	if _, ok := r.granted[userID][badgeID]; ok {
		return false, nil
	}
	r.granted[userID][badgeID] = time.Now().UTC()
	return true, nil
}

func (r *memBadgeRepo) ListUserBadges(_ context.Context, userID string) ([]*badge.UserBadge, []*badge.Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var grants []*badge.UserBadge
	var badges []*badge.Badge
	for id, at := range r.granted[userID] {
		grants = append(grants, &badge.UserBadge{UserID: userID, BadgeID: id, EarnedAt: at})
		for _, b := range r.catalog {
			if b.ID == id {
				badges = append(badges, b)
			}
		}
	}
	return grants, badges, nil
}

type memChallengeRepo struct {
	mu             sync.Mutex
	challenges     map[string]*challenge.Challenge
	participations map[string]*challenge.UserChallenge
}

func newMemChallengeRepo(challenges ...*challenge.Challenge) *memChallengeRepo {
	r := &memChallengeRepo{
		challenges:     make(map[string]*challenge.Challenge),
		participations: make(map[string]*challenge.UserChallenge),
	}
	for _, c := range challenges {
		r.challenges[c.ID] = c
	}
	return r
}

func (r *memChallengeRepo) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return c, nil
}

func (r *memChallengeRepo) ListAvailable(_ context.Context, at time.Time) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, c := range r.challenges {
		if c.IsAcceptable(at) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memChallengeRepo) Accept(_ context.Context, uc *challenge.UserChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participations {
		if existing.UserID == uc.UserID && existing.ChallengeID == uc.ChallengeID {
			return shared.ErrChallengeAccepted
		}
	}
	copied := *uc
	r.participations[uc.ID] = &copied
	return nil
}

func (r *memChallengeRepo) ListActiveForUser(_ context.Context, userID string) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memChallengeRepo) ListForUser(_ context.Context, userID string) ([]*challenge.UserChallenge, []*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memChallengeRepo) Advance(_ context.Context, userChallengeID string, at time.Time) (*challenge.UserChallenge, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uc, ok := r.participations[userChallengeID]
	if !ok {
		return nil, false, shared.ErrChallengeNotAccepted
	}
	completed, err := uc.Advance(r.challenges[uc.ChallengeID], at)
	if err != nil {
		return uc, false, err
	}
	return uc, completed, nil
}

func (r *memChallengeRepo) ExpireOverdue(_ context.Context, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, uc := range r.participations {
		if uc.Status == challenge.UserChallengeActive && r.challenges[uc.ChallengeID].IsExpired(at) {
			uc.Status = challenge.UserChallengeExpired
			n++
		}
	}
	return n, nil
}

type memQuizRepo struct {
	questions map[string][]*content.QuizQuestion
	answers   []*content.QuizAnswer
	results   []*content.QuizResult
	passed    map[string]bool // (user|content) -> stored passed flag
}

func newMemQuizRepo() *memQuizRepo {
	return &memQuizRepo{
		questions: make(map[string][]*content.QuizQuestion),
		passed:    make(map[string]bool),
	}
}

func (r *memQuizRepo) GetQuestions(_ context.Context, contentID string) ([]*content.QuizQuestion, error) {
	return r.questions[contentID], nil
}

func (r *memQuizRepo) SaveAnswer(_ context.Context, answer *content.QuizAnswer) error {
	r.answers = append(r.answers, answer)
	return nil
}

func (r *memQuizRepo) SaveResult(_ context.Context, result *content.QuizResult) (bool, error) {
	r.results = append(r.results, result)
	key := result.UserID + "|" + result.ContentID
	firstPass := result.Passed && !r.passed[key]
	if result.Passed {
		r.passed[key] = true
	}
	return firstPass, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *recordingBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) count(t shared.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type seqIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGenerator) GenerateID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}
