// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier. The format is opaque to the
// domain; persistence decides what an ID looks like.
type UserID string

// IsValid checks that the user ID is non-empty.
func (u UserID) IsValid() bool {
	return len(strings.TrimSpace(string(u))) > 0
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", ErrInvalidUserID
	}
	return u, nil
}

// ContentID represents a unique learning content identifier.
type ContentID string

// IsValid checks that the content ID is non-empty.
func (c ContentID) IsValid() bool {
	return len(strings.TrimSpace(string(c))) > 0
}

// String returns the string representation.
func (c ContentID) String() string {
	return string(c)
}

// NewContentID creates a new ContentID with validation.
func NewContentID(id string) (ContentID, error) {
	c := ContentID(strings.TrimSpace(id))
	if !c.IsValid() {
		return "", ErrInvalidContentID
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Objective (challenge matching token)
// ═══════════════════════════════════════════════════════════════════════════

// Objective is a token matched against event types to decide whether an event
// counts toward a challenge, e.g. "content_complete".
type Objective string

// IsValid checks that the objective token is non-empty.
func (o Objective) IsValid() bool {
	return len(strings.TrimSpace(string(o))) > 0
}

// Matches reports whether the given event token counts toward this objective.
// Matching is substring containment, so compound objectives like
// "daily_content_complete" still count plain "content_complete" events.
func (o Objective) Matches(eventToken string) bool {
	return strings.Contains(string(o), eventToken)
}

// String returns the string representation.
func (o Objective) String() string {
	return string(o)
}
