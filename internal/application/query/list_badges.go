package query

import (
	"context"
	"errors"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/badge"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST BADGES QUERY
// Returns the active badge catalog, optionally annotated with the earned
// state of one user. Earned entries never disappear: a badge deactivated
// after being granted still shows up as earned.
// ══════════════════════════════════════════════════════════════════════════════

// ListBadgesQuery contains the catalog request parameters.
type ListBadgesQuery struct {
	// UserID annotates the catalog with this user's earned badges.
	// Empty returns the plain catalog.
	UserID string

	// EarnedOnly narrows the result to earned badges (requires UserID).
	EarnedOnly bool
}

// Validate validates the query parameters.
func (q *ListBadgesQuery) Validate() error {
	if q.EarnedOnly && q.UserID == "" {
		return errors.New("earned_only requires user_id")
	}
	return nil
}

// BadgeDTO is one catalog entry.
type BadgeDTO struct {
	// ID is the badge identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Description explains how to earn the badge.
	Description string `json:"description"`

	// Icon is the display icon reference.
	Icon string `json:"icon"`

	// Rarity is the cosmetic tier (common..legendary).
	Rarity string `json:"rarity"`

	// PointsReward is the bonus paid when the badge is granted.
	PointsReward int `json:"points_reward"`

	// Earned indicates the requesting user holds this badge.
	Earned bool `json:"earned"`

	// EarnedAt is when the badge was granted (nil if not earned).
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// ListBadgesResult contains the badge catalog.
type ListBadgesResult struct {
	// Badges are the catalog entries.
	Badges []BadgeDTO `json:"badges"`

	// EarnedCount is how many entries are earned (0 without UserID).
	EarnedCount int `json:"earned_count"`

	// GeneratedAt is when the result was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}

// ListBadgesHandler handles badge catalog requests.
type ListBadgesHandler struct {
	badgeRepo badge.Repository
}

// NewListBadgesHandler creates a new handler.
func NewListBadgesHandler(badgeRepo badge.Repository) *ListBadgesHandler {
	return &ListBadgesHandler{badgeRepo: badgeRepo}
}

// Handle executes the list badges query.
func (h *ListBadgesHandler) Handle(ctx context.Context, query ListBadgesQuery) (*ListBadgesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListBadges", shared.ErrValidation, err.Error(), err)
	}

	catalog, err := h.badgeRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &ListBadgesResult{
		Badges:      make([]BadgeDTO, 0, len(catalog)),
		GeneratedAt: time.Now().UTC(),
	}

	// Earned state, including badges no longer in the active catalog.
	earnedAt := make(map[string]time.Time)
	extra := make([]*badge.Badge, 0)
	if query.UserID != "" {
		grants, badges, err := h.badgeRepo.ListUserBadges(ctx, query.UserID)
		if err != nil {
			return nil, err
		}
		for _, g := range grants {
			earnedAt[g.BadgeID] = g.EarnedAt
		}
		inCatalog := make(map[string]struct{}, len(catalog))
		for _, b := range catalog {
			inCatalog[b.ID] = struct{}{}
		}
		for _, b := range badges {
			if _, ok := inCatalog[b.ID]; !ok {
				extra = append(extra, b)
			}
		}
	}

	for _, b := range append(catalog, extra...) {
		dto := BadgeDTO{
			ID:           b.ID,
			Name:         b.Name,
			Description:  b.Description,
			Icon:         b.Icon,
			Rarity:       string(b.Rarity),
			PointsReward: b.PointsReward,
		}
		if at, ok := earnedAt[b.ID]; ok {
			dto.Earned = true
			t := at
			dto.EarnedAt = &t
			result.EarnedCount++
		}
		if query.EarnedOnly && !dto.Earned {
			continue
		}
		result.Badges = append(result.Badges, dto)
	}

	return result, nil
}
