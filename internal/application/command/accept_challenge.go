package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/challenge"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCEPT CHALLENGE COMMAND
// A user opts into a challenge. Only active, unexpired challenges can be
// accepted, and a user can accept each challenge once - the unique constraint
// on (user, challenge) is the final arbiter under concurrency.
// ══════════════════════════════════════════════════════════════════════════════

// AcceptChallengeCommand contains the data to accept a challenge.
type AcceptChallengeCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// ChallengeID is the ID of the challenge to accept.
	ChallengeID string

	// Timestamp is when the request arrived (defaults to now if zero).
	Timestamp time.Time
}

// Validate validates the command.
func (c AcceptChallengeCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.ChallengeID == "" {
		return errors.New("accept_challenge: challenge_id is required")
	}
	return nil
}

// AcceptChallengeResult contains the result of accepting a challenge.
type AcceptChallengeResult struct {
	// Participation is the newly created user challenge.
	Participation *challenge.UserChallenge

	// Challenge is the accepted challenge.
	Challenge *challenge.Challenge
}

// AcceptChallengeHandler handles the AcceptChallengeCommand.
type AcceptChallengeHandler struct {
	challengeRepo challenge.Repository
	idGenerator   saga.IDGenerator
	log           *logger.Logger
}

// NewAcceptChallengeHandler creates a new AcceptChallengeHandler.
func NewAcceptChallengeHandler(
	challengeRepo challenge.Repository,
	idGenerator saga.IDGenerator,
	log *logger.Logger,
) *AcceptChallengeHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AcceptChallengeHandler{
		challengeRepo: challengeRepo,
		idGenerator:   idGenerator,
		log:           log.With(logger.Component("accept_challenge")),
	}
}

// Handle executes the accept challenge command.
func (h *AcceptChallengeHandler) Handle(ctx context.Context, cmd AcceptChallengeCommand) (*AcceptChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("accept_challenge: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	c, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("accept_challenge: failed to load challenge: %w", err)
	}

	// Inactive and expired challenges look the same to the caller as a
	// missing one: not acceptable.
	if !c.IsAcceptable(timestamp) {
		return nil, shared.ErrChallengeNotFound
	}

	uc := challenge.NewUserChallenge(h.idGenerator.GenerateID(), cmd.UserID, cmd.ChallengeID, timestamp)
	if err := h.challengeRepo.Accept(ctx, uc); err != nil {
		if shared.IsAlreadyExists(err) {
			return nil, shared.ErrChallengeAccepted
		}
		return nil, fmt.Errorf("accept_challenge: failed to persist: %w", err)
	}

	h.log.Info("challenge accepted",
		logger.UserID(cmd.UserID), logger.ChallengeID(cmd.ChallengeID))

	return &AcceptChallengeResult{Participation: uc, Challenge: c}, nil
}
