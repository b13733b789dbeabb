// Package api exposes the complaint engine over HTTP: citizen submission
// and lookup endpoints, the authority dashboard (ranked queue, lifecycle
// transitions, category overrides), and operational endpoints for model
// reloads and search.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/intake"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/search"
)

// List pagination bounds.
const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// IndexNotifier schedules a search index refresh for one complaint after
// a write. Implementations must not block the request path; a refusal is
// fine, the periodic sweep reconciles misses.
type IndexNotifier interface {
	Enqueue(complaintID string) bool
}

// Handler handles HTTP requests for the complaint engine API.
type Handler struct {
	intake    *intake.Service
	search    *search.Index // nil when no search backend is configured
	notifier  IndexNotifier // nil when no search backend is configured
	weights   map[domain.Category]float64
	modelPath string
	logger    logging.Logger
}

// NewHandler creates a new API handler. The search index may be nil; the
// search endpoint then reports the capability as unavailable.
func NewHandler(
	svc *intake.Service,
	idx *search.Index,
	weights map[domain.Category]float64,
	modelPath string,
	log logging.Logger,
) *Handler {
	if weights == nil {
		weights = domain.DefaultUrgencyWeights()
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Handler{
		intake:    svc,
		search:    idx,
		weights:   weights,
		modelPath: modelPath,
		logger:    log,
	}
}

// WithNotifier attaches a live index refresh queue. Without one, search
// results lag writes by at most one sweep interval.
func (h *Handler) WithNotifier(n IndexNotifier) *Handler {
	h.notifier = n
	return h
}

// notifyIndex schedules a search refresh for a complaint that just
// changed. Best effort: a full queue only delays visibility.
func (h *Handler) notifyIndex(complaintID string) {
	if h.notifier == nil || complaintID == "" {
		return
	}
	h.notifier.Enqueue(complaintID)
}

// SubmitComplaint handles POST /api/v1/complaints
func (h *Handler) SubmitComplaint(c *gin.Context) {
	var req SubmitComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid submission request", logging.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.intake.Submit(c.Request.Context(), req.Text, req.CitizenID)
	if err != nil {
		h.logger.Warn("Submission rejected",
			logging.String("citizen_id", req.CitizenID),
			logging.Error(err),
		)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Submission accepted",
		logging.String("complaint_id", result.ComplaintID),
		logging.String("category", string(result.Category)),
		logging.Bool("is_new", result.IsNew),
		logging.Bool("already_voted", result.AlreadyVoted),
	)

	if !result.AlreadyVoted {
		h.notifyIndex(result.ComplaintID)
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// VoteComplaint handles POST /api/v1/complaints/:id/votes
func (h *Handler) VoteComplaint(c *gin.Context) {
	id := c.Param("id")

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid vote request", logging.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.intake.Vote(c.Request.Context(), id, req.CitizenID)
	if err != nil {
		h.logger.Warn("Vote rejected",
			logging.String("complaint_id", id),
			logging.Error(err),
		)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Vote recorded",
		logging.String("complaint_id", id),
		logging.Int("votes", result.Votes),
		logging.Bool("already_voted", result.AlreadyVoted),
	)

	if !result.AlreadyVoted {
		h.notifyIndex(result.ComplaintID)
	}

	c.JSON(http.StatusOK, result)
}

// GetComplaint handles GET /api/v1/complaints/:id
func (h *Handler) GetComplaint(c *gin.Context) {
	id := c.Param("id")

	complaint, err := h.intake.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// ListComplaints handles GET /api/v1/complaints
// Query parameters: category, status (repeatable), page, per_page.
func (h *Handler) ListComplaints(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	complaints, total, err := h.intake.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list complaints", logging.Error(err))
		c.JSON(statusForError(err), gin.H{"error": "Failed to load complaints"})
		return
	}

	c.JSON(http.StatusOK, ComplaintListResponse{
		Complaints: complaints,
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
	})
}

// listFilter parses and validates list query parameters. On a validation
// failure it writes the error response and returns ok=false.
func (h *Handler) listFilter(c *gin.Context) (registry.Filter, bool) {
	filter := registry.Filter{
		Page:    defaultPage,
		PerPage: defaultPerPage,
	}

	if category := c.Query("category"); category != "" {
		if !domain.Category(category).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + category})
			return filter, false
		}
		filter.Category = domain.Category(category)
	}

	for _, status := range c.QueryArray("status") {
		if !domain.Status(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status})
			return filter, false
		}
		filter.Statuses = append(filter.Statuses, domain.Status(status))
	}

	if pageParam := c.Query("page"); pageParam != "" {
		if p, err := strconv.Atoi(pageParam); err == nil && p > 0 {
			filter.Page = p
		}
	}

	if sizeParam := c.Query("per_page"); sizeParam != "" {
		if s, err := strconv.Atoi(sizeParam); err == nil && s > 0 && s <= maxPerPage {
			filter.PerPage = s
		}
	}

	return filter, true
}

// ListRanked handles GET /api/v1/ranked
// The optional repeatable status parameter narrows the ranking; without it
// all open complaints are ranked.
func (h *Handler) ListRanked(c *gin.Context) {
	var statuses []domain.Status
	for _, status := range c.QueryArray("status") {
		statuses = append(statuses, domain.Status(status))
	}

	results, err := h.intake.ListRanked(c.Request.Context(), statuses)
	if err != nil {
		h.logger.Warn("Ranked listing failed", logging.Error(err))
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, RankedListResponse{
		Results: results,
		Total:   len(results),
	})
}

// SearchComplaints handles GET /api/v1/complaints/search
// Query parameters: q, category, status (repeatable), size.
func (h *Handler) SearchComplaints(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}

	req := search.Request{Query: c.Query("q")}

	if category := c.Query("category"); category != "" {
		if !domain.Category(category).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + category})
			return
		}
		req.Category = domain.Category(category)
	}

	for _, status := range c.QueryArray("status") {
		if !domain.Status(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status})
			return
		}
		req.Statuses = append(req.Statuses, domain.Status(status))
	}

	if sizeParam := c.Query("size"); sizeParam != "" {
		if s, err := strconv.Atoi(sizeParam); err == nil && s > 0 {
			req.Size = s
		}
	}

	hits, total, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Search failed", logging.String("query", req.Query), logging.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "search backend unavailable"})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Hits:  hits,
		Total: total,
	})
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories := domain.Categories()
	infos := make([]CategoryInfo, len(categories))
	for i, cat := range categories {
		infos[i] = CategoryInfo{
			Name:          cat,
			UrgencyWeight: h.weights[cat],
		}
	}

	c.JSON(http.StatusOK, CategoriesResponse{Categories: infos})
}

// ReadyCheck handles GET /ready
// The engine is ready once a classification model is loaded.
func (h *Handler) ReadyCheck(c *gin.Context) {
	version := h.intake.ModelVersion()
	if version == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "no classification model loaded",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"model_version": version,
	})
}
