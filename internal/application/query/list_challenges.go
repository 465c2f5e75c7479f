package query

import (
	"context"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST CHALLENGES QUERY
// Two views over the same data: the open catalog (active, unexpired
// challenges anyone can accept) and one user's participations with their
// live progress counters.
// ══════════════════════════════════════════════════════════════════════════════

// ListChallengesQuery contains the catalog request parameters.
type ListChallengesQuery struct {
	// UserID annotates catalog entries with this user's participation.
	// Empty returns the plain catalog.
	UserID string

	// At is the reference time for expiry (defaults to now if zero).
	At time.Time
}

// ChallengeDTO is one challenge entry, optionally with participation state.
type ChallengeDTO struct {
	// ID is the challenge identifier.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Description explains the objective.
	Description string `json:"description"`

	// Objective is the event pattern the challenge counts.
	Objective string `json:"objective"`

	// TargetValue is how many matching events complete the challenge.
	TargetValue int `json:"target_value"`

	// PointsReward is the bonus paid on completion.
	PointsReward int `json:"points_reward"`

	// BadgeRewardID is the badge granted on completion (optional).
	BadgeRewardID string `json:"badge_reward_id,omitempty"`

	// StartDate and EndDate bound the challenge window.
	// EndDate is nil for never-expiring challenges.
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Accepted indicates the requesting user participates.
	Accepted bool `json:"accepted"`

	// Status is the participation status (empty if not accepted).
	Status string `json:"status,omitempty"`

	// CurrentValue is the participation counter (0 if not accepted).
	CurrentValue int `json:"current_value"`

	// CompletedAt is when the participation completed (nil otherwise).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListChallengesResult contains the challenge catalog.
type ListChallengesResult struct {
	// Challenges are the catalog entries.
	Challenges []ChallengeDTO `json:"challenges"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// ListUserChallengesResult contains one user's participations.
type ListUserChallengesResult struct {
	// Challenges are the participation entries, newest first.
	Challenges []ChallengeDTO `json:"challenges"`

	// ActiveCount is the number of active participations.
	ActiveCount int `json:"active_count"`

	// CompletedCount is the number of completed participations.
	CompletedCount int `json:"completed_count"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// ListChallengesHandler handles challenge catalog requests.
type ListChallengesHandler struct {
	challengeRepo challenge.Repository
}

// NewListChallengesHandler creates a new handler.
func NewListChallengesHandler(challengeRepo challenge.Repository) *ListChallengesHandler {
	return &ListChallengesHandler{challengeRepo: challengeRepo}
}

// Handle executes the list challenges query.
func (h *ListChallengesHandler) Handle(ctx context.Context, query ListChallengesQuery) (*ListChallengesResult, error) {
	at := query.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	available, err := h.challengeRepo.ListAvailable(ctx, at)
	if err != nil {
		return nil, err
	}

	participations := make(map[string]*challenge.UserChallenge)
	if query.UserID != "" {
		ucs, _, err := h.challengeRepo.ListForUser(ctx, query.UserID)
		if err != nil {
			return nil, err
		}
		for _, uc := range ucs {
			participations[uc.ChallengeID] = uc
		}
	}

	result := &ListChallengesResult{
		Challenges:  make([]ChallengeDTO, 0, len(available)),
		GeneratedAt: at,
	}
	for _, c := range available {
		result.Challenges = append(result.Challenges, buildChallengeDTO(c, participations[c.ID]))
	}
	return result, nil
}

// HandleForUser returns one user's participations, newest first.
func (h *ListChallengesHandler) HandleForUser(ctx context.Context, userID string) (*ListUserChallengesResult, error) {
	ucs, challenges, err := h.challengeRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*challenge.Challenge, len(challenges))
	for _, c := range challenges {
		byID[c.ID] = c
	}

	result := &ListUserChallengesResult{
		Challenges:  make([]ChallengeDTO, 0, len(ucs)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, uc := range ucs {
		c, ok := byID[uc.ChallengeID]
		if !ok {
			continue
		}
		result.Challenges = append(result.Challenges, buildChallengeDTO(c, uc))
		switch uc.Status {
		case challenge.UserChallengeActive:
			result.ActiveCount++
		case challenge.UserChallengeCompleted:
			result.CompletedCount++
		}
	}
	return result, nil
}

// buildChallengeDTO merges a challenge with an optional participation.
func buildChallengeDTO(c *challenge.Challenge, uc *challenge.UserChallenge) ChallengeDTO {
	dto := ChallengeDTO{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Objective:     string(c.Objective),
		TargetValue:   c.TargetValue,
		PointsReward:  c.PointsReward,
		BadgeRewardID: c.BadgeRewardID,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
	}
	if uc != nil {
		dto.Accepted = true
		dto.Status = string(uc.Status)
		dto.CurrentValue = uc.CurrentValue
		dto.CompletedAt = uc.CompletedAt
	}
	return dto
}
