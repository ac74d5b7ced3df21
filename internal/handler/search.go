package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Search runs one semantic query over today's embedded content.
// Query params: q (required), top_k (optional, default 10).
func (h *Handler) Search(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service unavailable"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	topK := 10
	if v := c.Query("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top_k must be an integer between 1 and 100"})
			return
		}
		topK = n
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.search")
	defer span.End()

	results := h.searcher.Search(ctx, query, topK)

	payload := make([]gin.H, 0, len(results))
	for _, result := range results {
		payload = append(payload, gin.H{
			"content_type":    result.Record.ContentType,
			"content_id":      result.Record.ContentID,
			"token":           result.Record.Token,
			"symbol":          result.Record.Symbol,
			"content_text":    result.Record.ContentText,
			"similarity":      result.Similarity,
			"relevance_score": result.RelevanceScore,
			"created_at":      result.Record.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "count": len(payload), "results": payload})
}
