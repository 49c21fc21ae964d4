package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/config"
	"github.com/zfogg/reelrank/internal/kernel"
	"github.com/zfogg/reelrank/internal/recommendations"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	kernel *kernel.Kernel
}

// NewHandlers creates a new handlers instance
func NewHandlers(k *kernel.Kernel) *Handlers {
	return &Handlers{kernel: k}
}

func (h *Handlers) engine() *recommendations.Engine {
	return h.kernel.Engine()
}

func (h *Handlers) config() *config.Config {
	return h.kernel.Config()
}

// RegisterRoutes mounts the API under the given group, normally /api/v1.
// interactionLimit, when non-nil, guards the interaction write endpoint.
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup, interactionLimit gin.HandlerFunc) {
	api.GET("/feed", h.GetFeed)
	api.GET("/feed/category", h.GetCategoryFeed)
	api.GET("/trending", h.GetTrending)
	api.GET("/similar/:post_id", h.GetSimilarPosts)

	if interactionLimit != nil {
		api.POST("/interaction", interactionLimit, h.RecordInteraction)
	} else {
		api.POST("/interaction", h.RecordInteraction)
	}

	users := api.Group("/users")
	{
		users.GET("/:username/profile", h.GetUserProfile)
		users.PUT("/:username/preferences", h.UpdatePreferences)
	}

	api.GET("/interactions/stats", h.GetInteractionStats)
	api.GET("/recommendations/logs", h.GetRecommendationLogs)
	api.POST("/recommendations/rebuild", h.RebuildCollaborative)
}
