package handler

import (
	"net/http"

	"coin-scout/internal/domain"

	"github.com/gin-gonic/gin"
)

// ListPositions returns all active positions.
func (h *Handler) ListPositions(c *gin.Context) {
	if h.positions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "position store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-positions")
	defer span.End()

	positions, err := h.positions.ListActive(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(positions), "positions": positions})
}
