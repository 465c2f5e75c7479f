package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

func openChallenge(id string, end time.Time) *challenge.Challenge {
	return &challenge.Challenge{
		ID:           id,
		Title:        "Challenge " + id,
		Objective:    "content_complete",
		TargetValue:  5,
		PointsReward: 100,
		StartDate:    end.AddDate(0, 0, -7),
		EndDate:      &end,
		Active:       true,
	}
}

func TestAcceptChallenge_CreatesParticipation(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemChallengeRepo(openChallenge("ch1", now.AddDate(0, 0, 3)))
	handler := NewAcceptChallengeHandler(repo, &seqIDGenerator{}, nil)

	result, err := handler.Handle(context.Background(), AcceptChallengeCommand{
		UserID:      "u1",
		ChallengeID: "ch1",
		Timestamp:   now,
	})

	require.NoError(t, err)
	assert.Equal(t, "u1", result.Participation.UserID)
	assert.Equal(t, "ch1", result.Participation.ChallengeID)
	assert.Equal(t, challenge.UserChallengeActive, result.Participation.Status)
	assert.Zero(t, result.Participation.CurrentValue)
}

func TestAcceptChallenge_DuplicateRejected(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemChallengeRepo(openChallenge("ch1", now.AddDate(0, 0, 3)))
	handler := NewAcceptChallengeHandler(repo, &seqIDGenerator{}, nil)
	cmd := AcceptChallengeCommand{UserID: "u1", ChallengeID: "ch1", Timestamp: now}

	_, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrChallengeAccepted))
}

func TestAcceptChallenge_ExpiredLooksLikeMissing(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemChallengeRepo(openChallenge("ch1", now.AddDate(0, 0, -1)))
	handler := NewAcceptChallengeHandler(repo, &seqIDGenerator{}, nil)

	_, err := handler.Handle(context.Background(), AcceptChallengeCommand{
		UserID:      "u1",
		ChallengeID: "ch1",
		Timestamp:   now,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrChallengeNotFound))
}

func TestAcceptChallenge_InactiveLooksLikeMissing(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	c := openChallenge("ch1", now.AddDate(0, 0, 3))
	c.Active = false
	handler := NewAcceptChallengeHandler(newMemChallengeRepo(c), &seqIDGenerator{}, nil)

	_, err := handler.Handle(context.Background(), AcceptChallengeCommand{
		UserID:      "u1",
		ChallengeID: "ch1",
		Timestamp:   now,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrChallengeNotFound))
}

func TestAcceptChallenge_UnknownChallengeFails(t *testing.T) {
	handler := NewAcceptChallengeHandler(newMemChallengeRepo(), &seqIDGenerator{}, nil)

	_, err := handler.Handle(context.Background(), AcceptChallengeCommand{
		UserID:      "u1",
		ChallengeID: "ghost",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrChallengeNotFound))
}
