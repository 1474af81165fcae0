package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// The expected JSON request body for submitting a chat message.
type submitRequest struct {
	Content string            `json:"content"`
	Context map[string]string `json:"context,omitempty"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := UserID(ctx)

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		jobID, err := s.chatUC.Submit(ctx, userID, req.Content, req.Context)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrRateLimited):
				http.Error(w, err.Error(), http.StatusTooManyRequests)
			case errors.Is(err, domain.ErrStoreUnavailable):
				http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
			default:
				s.log.Error().Err(err).Int64("user_id", userID).Msg("submit failed")
				http.Error(w, "Failed to submit message", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusAccepted, submitResponse{
			JobID:  jobID,
			Status: string(model.ChatJobStatusPending),
		})
	}
}

func (s *Server) jobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := UserID(ctx)
		jobID := chi.URLParam(r, "id")

		job, err := s.chatUC.Status(ctx, userID, jobID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "Job not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrInvalidArgument):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				s.log.Error().Err(err).Str("job_id", jobID).Msg("status lookup failed")
				http.Error(w, "Failed to look up job", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (s *Server) historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := UserID(ctx)

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		msgs, err := s.chatUC.History(ctx, userID, limit)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("history lookup failed")
			http.Error(w, "Failed to load history", http.StatusInternalServerError)
			return
		}
		if msgs == nil {
			msgs = []*model.ChatMessage{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
