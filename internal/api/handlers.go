// Package api exposes HTTP handlers for activities, progress and profiles.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"example.com/menta/internal/auth"
	"example.com/menta/internal/domain"
	"example.com/menta/internal/logging"
	"example.com/menta/internal/persistence"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	activities *domain.ActivityService
	aggregator *domain.ProgressAggregator
	users      *domain.UserService
}

// NewHandler builds a Handler.
func NewHandler(activities *domain.ActivityService, aggregator *domain.ProgressAggregator, users *domain.UserService) *Handler {
	return &Handler{activities: activities, aggregator: aggregator, users: users}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	activity, err := h.activities.CreateActivity(r.Context(), req.toInput(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotRecorded) && activity != nil {
			logging.Ctx(r.Context()).Error().Err(err).
				Str("activity_id", activity.ID).
				Str("user_id", claims.Subject).
				Msg("activity stored without progress")
			writeError(w, http.StatusInternalServerError, "progress_not_recorded",
				"activity "+activity.ID+" was stored but progress was not updated")
			return
		}
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	activity, err := h.activities.GetActivity(r.Context(), chi.URLParam(r, "activityID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = claims.Subject
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.activities.ListActivitiesByUser(r.Context(), userID, cursor, pageLimit(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(activities, next))
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.activities.Feed(r.Context(), cursor, pageLimit(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(activities, next))
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req AddCommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	activity, err := h.activities.AddComment(r.Context(), chi.URLParam(r, "activityID"), claims.Subject, req.Text)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if activity == nil {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeProgressRead); !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	summaries, err := h.aggregator.Aggregate(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := ProgressResponse{
		UserID: userID,
		Items:  make([]ProgressSummaryView, 0, len(summaries)),
	}
	for _, summary := range summaries {
		resp.Items = append(resp.Items, toProgressView(summary))
	}
	writeJSON(w, http.StatusOK, resp)
}
