package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/learnloop/learnloop-hub/internal/application/command"
	"github.com/learnloop/learnloop-hub/internal/application/query"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": s.Uptime().String(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReady pings the database and cache. Cache failure degrades the
// service but doesn't make it unready; the database does.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if s.deps.DatabaseChecker != nil {
		if err := s.deps.DatabaseChecker.Ping(ctx); err != nil {
			checks["database"] = "down"
			ready = false
		} else {
			checks["database"] = "up"
		}
	}
	if s.deps.CacheChecker != nil {
		if err := s.deps.CacheChecker.Ping(ctx); err != nil {
			checks["cache"] = "down"
		} else {
			checks["cache"] = "up"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"ready":  ready,
		"checks": checks,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// progressRequest is the body of POST .../progress/{contentId}.
type progressRequest struct {
	Status         string `json:"status"`
	Percentage     int    `json:"percentage"`
	TimeSpentDelta int    `json:"time_spent_delta"`
	Notes          string `json:"notes,omitempty"`
}

func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	contentID := r.PathValue("contentId")

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	result, err := s.deps.CompleteContentHandler.Handle(r.Context(), command.CompleteContentCommand{
		UserID:         userID,
		ContentID:      contentID,
		Status:         progress.Status(req.Status),
		Percentage:     req.Percentage,
		TimeSpentDelta: req.TimeSpentDelta,
		Notes:          req.Notes,
		Timestamp:      time.Now().UTC(),
		CorrelationID:  getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":          result.UserID,
		"content_id":       result.ContentID,
		"status":           result.Record.Status,
		"percentage":       result.Record.ProgressPercentage,
		"first_completion": result.FirstCompletion,
		"points_awarded":   result.PointsAwarded,
		"total_points":     result.TotalPoints,
		"level":            result.Level,
		"leveled_up":       result.LeveledUp,
		"current_streak":   result.CurrentStreak,
		"new_badges":       result.NewBadges,
	})
}

// quizRequest is the body of POST .../quiz/{contentId}/submit.
type quizRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	contentID := r.PathValue("contentId")

	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	result, err := s.deps.SubmitQuizHandler.Handle(r.Context(), command.SubmitQuizCommand{
		UserID:        userID,
		ContentID:     contentID,
		Answers:       req.Answers,
		Timestamp:     time.Now().UTC(),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	payload := map[string]interface{}{
		"user_id":       result.UserID,
		"content_id":    result.ContentID,
		"score":         result.Score,
		"total":         result.Total,
		"passed":        result.Passed,
		"bonus_awarded": result.BonusAwarded,
	}
	if result.Completion != nil {
		payload["total_points"] = result.Completion.TotalPoints
		payload["level"] = result.Completion.Level
		payload["first_completion"] = result.Completion.FirstCompletion
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleAcceptChallenge(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	challengeID := r.PathValue("challengeId")

	result, err := s.deps.AcceptChallengeHandler.Handle(r.Context(), command.AcceptChallengeCommand{
		UserID:      userID,
		ChallengeID: challengeID,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"participation_id": result.Participation.ID,
		"challenge_id":     result.Challenge.ID,
		"title":            result.Challenge.Title,
		"target_value":     result.Challenge.TargetValue,
		"status":           result.Participation.Status,
		"accepted_at":      result.Participation.AcceptedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.GetUserStatsHandler.Handle(r.Context(), query.GetUserStatsQuery{
		UserID:      r.PathValue("userId"),
		BypassCache: r.URL.Query().Get("fresh") == "true",
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListBadgesHandler.Handle(r.Context(), query.ListBadgesQuery{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListUserBadges(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListBadgesHandler.Handle(r.Context(), query.ListBadgesQuery{
		UserID:     r.PathValue("userId"),
		EarnedOnly: r.URL.Query().Get("earned") == "true",
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListChallengesHandler.Handle(r.Context(), query.ListChallengesQuery{
		At: time.Now().UTC(),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListUserChallenges(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListChallengesHandler.HandleForUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	items, err := s.deps.NotificationRepo.ListForUser(r.Context(), r.PathValue("userId"), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, n := range items {
		entry := map[string]interface{}{
			"id":         n.ID,
			"type":       n.Type,
			"title":      n.Title,
			"message":    n.Message,
			"status":     n.Status,
			"created_at": n.CreatedAt,
		}
		if n.ReadAt != nil {
			entry["read_at"] = n.ReadAt
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("notificationId")
	if err := s.deps.NotificationRepo.MarkRead(r.Context(), id, time.Now().UTC()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "read"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error to an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrExpired), errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
