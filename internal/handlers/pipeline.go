package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/goldseal/goldseal-backend/internal/pipeline"
	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

type PipelineHandler struct {
	log      *logger.Logger
	pipeline *pipeline.Service
	embedder *pipeline.Embedder
}

func NewPipelineHandler(log *logger.Logger, p *pipeline.Service, embedder *pipeline.Embedder) *PipelineHandler {
	return &PipelineHandler{
		log:      log.With("handler", "PipelineHandler"),
		pipeline: p,
		embedder: embedder,
	}
}

type processRequest struct {
	Steps []string `json:"steps"`
}

// POST /api/admin/handouts/:id/process
// Run the content pipeline (or a subset of steps) for one handout.
func (h *PipelineHandler) ProcessHandout(c *gin.Context) {
	handoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req processRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	result, err := h.pipeline.Run(c.Request.Context(), handoutID, req.Steps)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/admin/handouts/:id/process
// Report pipeline progress for one handout.
func (h *PipelineHandler) GetStatus(c *gin.Context) {
	handoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	status, err := h.pipeline.GetStatus(c.Request.Context(), handoutID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, status)
}

// POST /api/cron/embed-pending
// Backfill embeddings for chunks left without vectors.
func (h *PipelineHandler) EmbedPending(c *gin.Context) {
	const sweepLimit = 500

	done, err := h.embedder.EmbedAllPending(c.Request.Context(), sweepLimit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"embedded": done})
}
