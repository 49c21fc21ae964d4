package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/util"
)

// GetInteractionStats returns service-wide interaction totals
// GET /api/v1/interactions/stats
func (h *Handlers) GetInteractionStats(c *gin.Context) {
	stats, err := h.engine().InteractionStats(c.Request.Context())
	if err != nil {
		util.RespondServiceUnavailable(c, "interaction stats")
		return
	}
	respondSuccess(c, gin.H{"stats": stats})
}

// GetRecommendationLogs returns the newest recommendation logs
// GET /api/v1/recommendations/logs?limit=10
func (h *Handlers) GetRecommendationLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 50 {
			util.RespondValidationError(c, "limit", "limit must be an integer between 1 and 50")
			return
		}
		limit = v
	}

	logs, err := h.engine().RecentLogs(c.Request.Context(), limit)
	if err != nil {
		util.RespondServiceUnavailable(c, "recommendation logs")
		return
	}
	respondSuccess(c, gin.H{"logs": logs, "count": len(logs)})
}

// RebuildCollaborative forces a refresh of the collaborative filtering matrix
// POST /api/v1/recommendations/rebuild
func (h *Handlers) RebuildCollaborative(c *gin.Context) {
	users, err := h.engine().RebuildCollaborative(c.Request.Context())
	if err != nil {
		util.RespondServiceUnavailable(c, "collaborative model")
		return
	}
	respondSuccess(c, gin.H{"users": users})
}
