// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/domain/user"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FLOW SAGA
// Runs once per first completion event, after the base points are awarded.
// Flow: Load User → Recompute Level → Recompute Streak → Evaluate Badges →
//
//	Advance Challenges → Publish Events
//
// Every step is idempotent: duplicate-grant guards live at the storage layer
// (conditional UPDATE, ON CONFLICT DO NOTHING), so a retried run cannot double
// a reward. Steps after the base award are non-critical: a failed streak or
// badge step is logged and skipped, never rolled back.
// ══════════════════════════════════════════════════════════════════════════════

// Event tokens matched against challenge objectives.
const (
	EventTokenContentComplete = "content_complete"
	EventTokenQuizPassed      = "quiz_passed"
)

// IDGenerator generates unique identifiers for new records.
type IDGenerator interface {
	GenerateID() string
}

// RewardFlowInput contains data needed to run the reward flow.
type RewardFlowInput struct {
	// UserID - the user the completion belongs to.
	UserID string

	// EventToken - what triggered this run ("content_complete", "quiz_passed").
	EventToken string

	// Timestamp - when the triggering event occurred.
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate checks if the input is valid.
func (i RewardFlowInput) Validate() error {
	if i.UserID == "" {
		return errors.New("reward_flow: user ID is required")
	}
	if i.EventToken == "" {
		return errors.New("reward_flow: event token is required")
	}
	return nil
}

// RewardFlowResult contains the result of reward processing.
type RewardFlowResult struct {
	// UserID - the user who was processed.
	UserID string

	// NewLevel - level after the run (0 if the user load failed).
	NewLevel int

	// LeveledUp - true if this run raised the stored level.
	LeveledUp bool

	// CurrentStreak - streak after the run.
	CurrentStreak int

	// NewBadges - badges granted by this run.
	NewBadges []*badge.Badge

	// CompletedChallenges - challenges completed by this run.
	CompletedChallenges []*challenge.Challenge

	// BonusPoints - total bonus points from badges and challenges.
	BonusPoints int

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// RewardFlowStep represents a step in the reward flow.
type RewardFlowStep string

const (
	StepLoadUser          RewardFlowStep = "load_user"
	StepRecomputeLevel    RewardFlowStep = "recompute_level"
	StepRecomputeStreak   RewardFlowStep = "recompute_streak"
	StepEvaluateBadges    RewardFlowStep = "evaluate_badges"
	StepAdvanceChallenges RewardFlowStep = "advance_challenges"
	StepApplyBonuses      RewardFlowStep = "apply_bonuses"
	StepPublishEvents     RewardFlowStep = "publish_events"
	StepRewardComplete    RewardFlowStep = "complete"
)

// rewardFlowState tracks the current state of a single run.
type rewardFlowState struct {
	currentStep RewardFlowStep
	input       RewardFlowInput

	user                *user.User
	streak              int
	leveledUp           bool
	oldLevel            int
	newBadges           []*badge.Badge
	completedChallenges []*challenge.Challenge
	bonusPoints         int
	events              []shared.Event

	failedStep RewardFlowStep
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardFlowSaga orchestrates level, streak, badge, and challenge processing
// after a completion event.
type RewardFlowSaga struct {
	userRepo      user.Repository
	progressRepo  progress.Repository
	badgeRepo     badge.Repository
	challengeRepo challenge.Repository
	eventBus      shared.EventPublisher
	log           *logger.Logger

	// Configuration
	enableBadges     bool
	enableChallenges bool
	enableStreaks    bool
}

// RewardFlowConfig contains configuration for the reward flow saga.
type RewardFlowConfig struct {
	EnableBadges     bool
	EnableChallenges bool
	EnableStreaks    bool
}

// DefaultRewardFlowConfig returns default configuration.
func DefaultRewardFlowConfig() RewardFlowConfig {
	return RewardFlowConfig{
		EnableBadges:     true,
		EnableChallenges: true,
		EnableStreaks:    true,
	}
}

// NewRewardFlowSaga creates a new reward flow saga with all dependencies.
func NewRewardFlowSaga(
	userRepo user.Repository,
	progressRepo progress.Repository,
	badgeRepo badge.Repository,
	challengeRepo challenge.Repository,
	eventBus shared.EventPublisher,
	log *logger.Logger,
	config RewardFlowConfig,
) *RewardFlowSaga {
	if log == nil {
		log = logger.Default()
	}
	return &RewardFlowSaga{
		userRepo:         userRepo,
		progressRepo:     progressRepo,
		badgeRepo:        badgeRepo,
		challengeRepo:    challengeRepo,
		eventBus:         eventBus,
		log:              log.With(logger.Component("reward_flow")),
		enableBadges:     config.EnableBadges,
		enableChallenges: config.EnableChallenges,
		enableStreaks:    config.EnableStreaks,
	}
}

// Execute runs the complete reward flow for one completion event.
func (s *RewardFlowSaga) Execute(ctx context.Context, input RewardFlowInput) (*RewardFlowResult, error) {
	state := &rewardFlowState{
		currentStep: StepLoadUser,
		input:       input,
	}

	if err := input.Validate(); err != nil {
		state.failedStep = StepLoadUser
		return nil, s.wrapError(state, err)
	}

	// Step 1: Load user (critical - everything else reads from it)
	if err := s.stepLoadUser(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Recompute level (critical - the main visible consequence of points)
	state.currentStep = StepRecomputeLevel
	if err := s.stepRecomputeLevel(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Recompute streak
	state.currentStep = StepRecomputeStreak
	if err := s.stepRecomputeStreak(ctx, state); err != nil {
		s.logStepFailure(state, err)
	}

	// Step 4: Evaluate badges
	state.currentStep = StepEvaluateBadges
	if err := s.stepEvaluateBadges(ctx, state); err != nil {
		s.logStepFailure(state, err)
	}

	// Step 5: Advance challenges
	state.currentStep = StepAdvanceChallenges
	if err := s.stepAdvanceChallenges(ctx, state); err != nil {
		s.logStepFailure(state, err)
	}

	// Step 6: Apply bonus points and re-check level once
	state.currentStep = StepApplyBonuses
	if err := s.stepApplyBonuses(ctx, state); err != nil {
		s.logStepFailure(state, err)
	}

	// Step 7: Publish domain events
	state.currentStep = StepPublishEvents
	if err := s.stepPublishEvents(ctx, state); err != nil {
		s.logStepFailure(state, err)
	}

	state.currentStep = StepRewardComplete
	now := time.Now().UTC()

	return &RewardFlowResult{
		UserID:              input.UserID,
		NewLevel:            state.user.Level.Int(),
		LeveledUp:           state.leveledUp,
		CurrentStreak:       state.streak,
		NewBadges:           state.newBadges,
		CompletedChallenges: state.completedChallenges,
		BonusPoints:         state.bonusPoints,
		ProcessedAt:         now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepLoadUser loads the user entity from the repository.
func (s *RewardFlowSaga) stepLoadUser(ctx context.Context, state *rewardFlowState) error {
	u, err := s.userRepo.GetByID(ctx, state.input.UserID)
	if err != nil {
		state.failedStep = StepLoadUser
		return fmt.Errorf("failed to load user: %w", err)
	}
	state.user = u
	state.oldLevel = u.Level.Int()
	return nil
}

// stepRecomputeLevel raises the stored level if the computed one is higher.
// The level never goes down: SetLevelIfHigher is a conditional UPDATE.
func (s *RewardFlowSaga) stepRecomputeLevel(ctx context.Context, state *rewardFlowState) error {
	computed := user.CalculateLevel(state.user.TotalPoints)
	if computed <= state.user.Level {
		return nil
	}

	raised, err := s.userRepo.SetLevelIfHigher(ctx, state.user.ID, computed)
	if err != nil {
		state.failedStep = StepRecomputeLevel
		return fmt.Errorf("failed to raise level: %w", err)
	}

	if raised {
		state.leveledUp = true
		state.user.Level = computed
		state.events = append(state.events,
			shared.NewLevelUpEvent(state.user.ID, state.oldLevel, computed.Int()))
	}
	return nil
}

// stepRecomputeStreak recomputes the streak from recent access dates.
// The streak is derived data; nothing is stored incrementally.
func (s *RewardFlowSaga) stepRecomputeStreak(ctx context.Context, state *rewardFlowState) error {
	if !s.enableStreaks {
		return nil
	}

	dates, err := s.progressRepo.RecentAccessDates(ctx, state.input.UserID, progress.StreakLookbackDays)
	if err != nil {
		return fmt.Errorf("failed to load access dates: %w", err)
	}

	state.streak = progress.CalculateStreak(state.input.Timestamp, dates)
	state.events = append(state.events,
		shared.NewStreakUpdatedEvent(state.input.UserID, state.streak))
	return nil
}

// stepEvaluateBadges grants every active badge whose requirement the current
// snapshot meets. The snapshot is taken once before the loop, so the outcome
// does not depend on catalog order. GrantIfAbsent makes concurrent runs grant
// each badge exactly once.
func (s *RewardFlowSaga) stepEvaluateBadges(ctx context.Context, state *rewardFlowState) error {
	if !s.enableBadges {
		return nil
	}

	candidates, err := s.badgeRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list badges: %w", err)
	}

	granted, err := s.badgeRepo.ListGrantedIDs(ctx, state.input.UserID)
	if err != nil {
		return fmt.Errorf("failed to list granted badges: %w", err)
	}

	completedCount, err := s.progressRepo.CountCompleted(ctx, state.input.UserID)
	if err != nil {
		return fmt.Errorf("failed to count completions: %w", err)
	}

	snapshot := badge.ProgressSnapshot{
		TotalPoints:    state.user.TotalPoints.Int(),
		CompletedCount: completedCount,
		StreakDays:     state.streak,
	}

	// Every eligible badge is granted: the set a run produces depends only
	// on the snapshot, never on catalog order.
	for _, b := range badge.Eligible(snapshot, candidates, granted) {
		created, err := s.badgeRepo.GrantIfAbsent(ctx, state.input.UserID, b.ID)
		if err != nil {
			if shared.IsInvariantViolation(err) {
				continue
			}
			s.log.Error("badge grant failed",
				logger.UserID(state.input.UserID), logger.BadgeID(b.ID), logger.Err(err))
			continue
		}
		if !created {
			// Lost the race to a concurrent run; the other run owns the bonus.
			continue
		}

		state.newBadges = append(state.newBadges, b)
		state.bonusPoints += b.PointsReward
		state.events = append(state.events,
			shared.NewBadgeGrantedEvent(state.input.UserID, b.ID, b.Name, b.PointsReward))
	}
	return nil
}

// stepAdvanceChallenges advances every accepted active challenge whose
// objective matches the event token. Expiry is checked against the event
// timestamp, not against wall clock at cleanup time.
func (s *RewardFlowSaga) stepAdvanceChallenges(ctx context.Context, state *rewardFlowState) error {
	if !s.enableChallenges {
		return nil
	}

	participations, challenges, err := s.challengeRepo.ListActiveForUser(ctx, state.input.UserID)
	if err != nil {
		return fmt.Errorf("failed to list user challenges: %w", err)
	}

	byID := make(map[string]*challenge.Challenge, len(challenges))
	for _, c := range challenges {
		byID[c.ID] = c
	}

	for _, uc := range participations {
		c, ok := byID[uc.ChallengeID]
		if !ok || !c.Objective.Matches(state.input.EventToken) {
			continue
		}

		_, completed, err := s.challengeRepo.Advance(ctx, uc.ID, state.input.Timestamp)
		if err != nil {
			if errors.Is(err, shared.ErrChallengeExpired) || errors.Is(err, shared.ErrChallengeCompleted) {
				continue
			}
			s.log.Error("challenge advance failed",
				logger.UserID(state.input.UserID), logger.ChallengeID(c.ID), logger.Err(err))
			continue
		}
		if !completed {
			continue
		}

		state.completedChallenges = append(state.completedChallenges, c)
		state.bonusPoints += c.PointsReward
		state.events = append(state.events,
			shared.NewChallengeCompletedEvent(state.input.UserID, c.ID, c.PointsReward))

		// Badge reward rides on the same duplicate guard as regular grants.
		if c.BadgeRewardID != "" {
			if _, err := s.badgeRepo.GrantIfAbsent(ctx, state.input.UserID, c.BadgeRewardID); err != nil &&
				!shared.IsInvariantViolation(err) {
				s.log.Error("challenge badge reward failed",
					logger.UserID(state.input.UserID), logger.BadgeID(c.BadgeRewardID), logger.Err(err))
			}
		}
	}
	return nil
}

// stepApplyBonuses credits accumulated bonus points and re-checks the level
// once, so a badge bonus that crosses a level boundary takes effect in the
// same run.
func (s *RewardFlowSaga) stepApplyBonuses(ctx context.Context, state *rewardFlowState) error {
	if state.bonusPoints == 0 {
		return nil
	}

	newTotal, err := s.userRepo.AddPoints(ctx, state.input.UserID, user.Points(state.bonusPoints))
	if err != nil {
		return fmt.Errorf("failed to credit bonus points: %w", err)
	}

	state.user.TotalPoints = newTotal
	state.events = append(state.events,
		shared.NewPointsAwardedEvent(state.input.UserID, state.bonusPoints, newTotal.Int(), "reward_bonus"))

	computed := user.CalculateLevel(newTotal)
	if computed > state.user.Level {
		raised, err := s.userRepo.SetLevelIfHigher(ctx, state.user.ID, computed)
		if err != nil {
			return fmt.Errorf("failed to raise level after bonus: %w", err)
		}
		if raised {
			oldLevel := state.user.Level.Int()
			state.leveledUp = true
			state.user.Level = computed
			state.events = append(state.events,
				shared.NewLevelUpEvent(state.user.ID, oldLevel, computed.Int()))
		}
	}
	return nil
}

// stepPublishEvents publishes accumulated domain events.
func (s *RewardFlowSaga) stepPublishEvents(ctx context.Context, state *rewardFlowState) error {
	if s.eventBus == nil {
		return nil
	}
	for _, event := range state.events {
		if err := s.eventBus.Publish(event); err != nil {
			s.log.Warn("event publish failed",
				logger.String("event_type", string(event.EventType())), logger.Err(err))
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// logStepFailure records a non-critical step failure. The flow continues:
// every reward write is individually guarded, so the skipped step can be
// made up by the next completion event.
func (s *RewardFlowSaga) logStepFailure(state *rewardFlowState, err error) {
	s.log.Warn("reward flow step skipped",
		logger.UserID(state.input.UserID),
		logger.String("step", string(state.currentStep)),
		logger.Err(err))
}

// wrapError wraps an error with saga context.
func (s *RewardFlowSaga) wrapError(state *rewardFlowState, err error) error {
	return &RewardFlowError{
		Step:    state.failedStep,
		UserID:  state.input.UserID,
		Cause:   err,
		Message: fmt.Sprintf("reward flow failed at step '%s': %v", state.failedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// RewardFlowError represents an error during the reward flow.
type RewardFlowError struct {
	Step    RewardFlowStep
	UserID  string
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RewardFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *RewardFlowError) Unwrap() error {
	return e.Cause
}
