package api

import (
	"errors"
	"net/http"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
	"github.com/jonesrussell/complaint-engine/internal/search"
)

// SubmitComplaintRequest represents a citizen submission.
type SubmitComplaintRequest struct {
	Text      string `json:"text"       binding:"required"`
	CitizenID string `json:"citizen_id" binding:"required"`
}

// VoteRequest corroborates an existing complaint.
type VoteRequest struct {
	CitizenID string `json:"citizen_id" binding:"required"`
}

// TransitionRequest moves a complaint through its lifecycle.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor"  binding:"required"`
}

// OverrideCategoryRequest corrects a misclassified complaint.
type OverrideCategoryRequest struct {
	Category string `json:"category" binding:"required"`
	Actor    string `json:"actor"    binding:"required"`
}

// ReloadModelRequest swaps the classification model. An empty path reloads
// from the configured model location.
type ReloadModelRequest struct {
	Path string `json:"path"`
}

// ComplaintListResponse represents a paginated list of complaints.
type ComplaintListResponse struct {
	Complaints []*domain.Complaint `json:"complaints"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PerPage    int                 `json:"per_page"`
}

// RankedListResponse represents the authority-facing priority ordering.
type RankedListResponse struct {
	Results []ranking.Scored `json:"results"`
	Total   int              `json:"total"`
}

// SearchResponse represents full-text search hits.
type SearchResponse struct {
	Hits  []search.Hit `json:"hits"`
	Total int          `json:"total"`
}

// CategoryInfo describes one complaint category and its ranking weight.
type CategoryInfo struct {
	Name          domain.Category `json:"name"`
	UrgencyWeight float64         `json:"urgency_weight"`
}

// CategoriesResponse lists the classification taxonomy.
type CategoriesResponse struct {
	Categories []CategoryInfo `json:"categories"`
}

// ModelReloadResponse reports the active model after a reload attempt.
type ModelReloadResponse struct {
	ModelVersion string `json:"model_version"`
}

// statusForError maps engine errors to HTTP status codes. Lifecycle
// violations are conflicts with the complaint's current state; model and
// lock-timeout failures are retryable service conditions.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, domain.ErrTerminalState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrModelUnavailable), errors.Is(err, domain.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
