package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerEmbedRun runs one embedding pipeline cycle and returns its counters.
func (h *Handler) TriggerEmbedRun(c *gin.Context) {
	if h.embedder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "embedding pipeline unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-embed-run")
	defer span.End()

	result, err := h.embedder.Run(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"posts_embedded":   result.PostsEmbedded,
		"reports_embedded": result.ReportsEmbedded,
		"skipped":          result.Skipped,
		"errors":           result.Errors,
	})
}

// TriggerPipelineRun runs one retrieval-to-position cycle.
func (h *Handler) TriggerPipelineRun(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-pipeline-run")
	defer span.End()

	result, err := h.pipeline.Run(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"token":          result.Token,
		"recommendation": result.Recommendation,
		"position_id":    result.PositionID,
		"errors":         result.Errors,
	})
}

// TriggerPortfolioRun runs one portfolio review cycle.
func (h *Handler) TriggerPortfolioRun(c *gin.Context) {
	if h.portfolio == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "portfolio manager unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-portfolio-run")
	defer span.End()

	result, err := h.portfolio.Run(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"positions_reviewed": result.PositionsReviewed,
		"positions_kept":     result.PositionsKept,
		"positions_closed":   result.PositionsClosed,
		"errors":             result.Errors,
	})
}
