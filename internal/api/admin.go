package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/fsm"
	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// TransitionStatus handles PUT /api/v1/complaints/:id/status
func (h *Handler) TransitionStatus(c *gin.Context) {
	id := c.Param("id")

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid transition request", logging.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	complaint, err := h.intake.TransitionStatus(c.Request.Context(), id, domain.Status(req.Status), req.Actor)
	if err != nil {
		h.logger.Warn("Transition rejected",
			logging.String("complaint_id", id),
			logging.String("to", req.Status),
			logging.Error(err),
		)
		h.writeTransitionError(c, id, err)
		return
	}

	h.logger.Info("Status transition applied",
		logging.String("complaint_id", id),
		logging.String("status", string(complaint.Status)),
		logging.String("actor", req.Actor),
	)

	h.notifyIndex(complaint.ID)
	c.JSON(http.StatusOK, complaint)
}

// writeTransitionError responds to a failed transition. Lifecycle conflicts
// include the complaint's current status and the transitions it still allows
// so dashboard clients can correct themselves without a second round trip.
func (h *Handler) writeTransitionError(c *gin.Context, id string, err error) {
	status := statusForError(err)
	if status != http.StatusConflict {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"error": err.Error()}
	if complaint, getErr := h.intake.Get(c.Request.Context(), id); getErr == nil {
		allowed := fsm.AllowedFrom(complaint.Status)
		if allowed == nil {
			allowed = []domain.Status{}
		}
		body["current_status"] = complaint.Status
		body["allowed_transitions"] = allowed
	}
	if errors.Is(err, domain.ErrTerminalState) {
		body["terminal"] = true
	}

	c.JSON(http.StatusConflict, body)
}

// OverrideCategory handles PUT /api/v1/complaints/:id/category
func (h *Handler) OverrideCategory(c *gin.Context) {
	id := c.Param("id")

	var req OverrideCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid override request", logging.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	complaint, err := h.intake.OverrideCategory(c.Request.Context(), id, domain.Category(req.Category), req.Actor)
	if err != nil {
		h.logger.Warn("Category override rejected",
			logging.String("complaint_id", id),
			logging.String("category", req.Category),
			logging.Error(err),
		)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("Category overridden",
		logging.String("complaint_id", id),
		logging.String("category", string(complaint.Category)),
		logging.String("actor", req.Actor),
	)

	h.notifyIndex(complaint.ID)
	c.JSON(http.StatusOK, complaint)
}

// ReloadModel handles POST /api/v1/admin/model/reload
// A failed reload keeps the previously loaded model active; the response
// always names the model that is serving.
func (h *Handler) ReloadModel(c *gin.Context) {
	var req ReloadModelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Invalid model reload request", logging.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	path := req.Path
	if path == "" {
		path = h.modelPath
	}

	if err := h.intake.ReloadModel(path); err != nil {
		h.logger.Error("Model reload failed",
			logging.String("path", path),
			logging.String("active_version", h.intake.ModelVersion()),
			logging.Error(err),
		)
		c.JSON(statusForError(err), gin.H{
			"error":         err.Error(),
			"model_version": h.intake.ModelVersion(),
		})
		return
	}

	h.logger.Info("Model reloaded",
		logging.String("path", path),
		logging.String("model_version", h.intake.ModelVersion()),
	)

	c.JSON(http.StatusOK, ModelReloadResponse{
		ModelVersion: h.intake.ModelVersion(),
	})
}
