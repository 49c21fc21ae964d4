package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/recommendations"
	"github.com/zfogg/reelrank/internal/util"
	"go.uber.org/zap"
)

// GetFeed returns the personalized feed for a user
// GET /api/v1/feed?username=alice&page=1&page_size=20
// Optional filters: project_code, category, tag, mood
func (h *Handlers) GetFeed(c *gin.Context) {
	username, ok := requireUsername(c)
	if !ok {
		return
	}
	p, ok := h.pagination(c)
	if !ok {
		return
	}

	res, err := h.engine().Feed(c.Request.Context(), recommendations.FeedRequest{
		Username: username,
		Page:     p.Page,
		PageSize: p.PageSize,
		Filter:   filterFromQuery(c),
		Mood:     strings.TrimSpace(c.Query("mood")),
	})
	if err != nil {
		respondReadError(c, err)
		return
	}

	c.JSON(http.StatusOK, newFeedResponse(res))
}

// GetCategoryFeed returns the feed restricted to one project
// GET /api/v1/feed/category?username=alice&project_code=abc
func (h *Handlers) GetCategoryFeed(c *gin.Context) {
	username, ok := requireUsername(c)
	if !ok {
		return
	}
	projectCode := strings.TrimSpace(c.Query("project_code"))
	if projectCode == "" {
		util.RespondValidationError(c, "project_code", "project_code is required")
		return
	}
	p, ok := h.pagination(c)
	if !ok {
		return
	}

	filter := filterFromQuery(c)
	filter.ProjectCode = projectCode

	res, err := h.engine().CategoryFeed(c.Request.Context(), recommendations.FeedRequest{
		Username: username,
		Page:     p.Page,
		PageSize: p.PageSize,
		Filter:   filter,
	})
	if err != nil {
		respondReadError(c, err)
		return
	}

	c.JSON(http.StatusOK, newFeedResponse(res))
}

// GetTrending returns recently popular posts
// GET /api/v1/trending?page=1&page_size=20&category=education
func (h *Handlers) GetTrending(c *gin.Context) {
	p, ok := h.pagination(c)
	if !ok {
		return
	}

	res, err := h.engine().Trending(c.Request.Context(), recommendations.TrendingRequest{
		Username: strings.TrimSpace(c.Query("username")),
		Category: strings.TrimSpace(c.Query("category")),
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	if err != nil {
		respondReadError(c, err)
		return
	}

	c.JSON(http.StatusOK, newFeedResponse(res))
}

// GetSimilarPosts returns posts similar to the given post
// GET /api/v1/similar/:post_id?username=alice
func (h *Handlers) GetSimilarPosts(c *gin.Context) {
	postID, err := util.ParseUintParam(c.Param("post_id"))
	if err != nil || postID == 0 {
		util.RespondValidationError(c, "post_id", "post_id must be a positive integer")
		return
	}
	p, ok := h.pagination(c)
	if !ok {
		return
	}

	res, err := h.engine().Similar(c.Request.Context(), recommendations.SimilarRequest{
		Username: strings.TrimSpace(c.Query("username")),
		PostID:   postID,
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	if err != nil {
		respondReadError(c, err)
		return
	}

	c.JSON(http.StatusOK, newFeedResponse(res))
}

// InteractionRequest is the body of POST /interaction.
type InteractionRequest struct {
	Username         string   `json:"username" binding:"required"`
	PostID           uint     `json:"post_id" binding:"required"`
	InteractionType  string   `json:"interaction_type" binding:"required"`
	InteractionValue *float64 `json:"interaction_value"`
}

// RecordInteraction stores a user action on a post
// POST /api/v1/interaction
func (h *Handlers) RecordInteraction(c *gin.Context) {
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", "invalid interaction payload: "+err.Error())
		return
	}
	username, err := util.NormalizeUsername(req.Username)
	if err != nil {
		util.RespondValidationError(c, "username", err.Error())
		return
	}

	_, err = h.engine().RecordInteraction(c.Request.Context(), recommendations.InteractionRequest{
		Username: username,
		PostID:   req.PostID,
		Type:     req.InteractionType,
		Value:    req.InteractionValue,
	})
	switch {
	case err == nil:
	case stderrors.Is(err, recommendations.ErrInvalidInteraction):
		util.RespondValidationError(c, "interaction_type", "unknown interaction type "+req.InteractionType)
		return
	case stderrors.Is(err, recommendations.ErrInvalidRequest):
		util.RespondValidationError(c, "", err.Error())
		return
	case stderrors.Is(err, recommendations.ErrPostNotFound):
		util.RespondNotFound(c, "post")
		return
	default:
		logger.Log.Error("Failed to record interaction",
			logger.WithUsername(username),
			logger.WithPostID(req.PostID),
			zap.String("interaction_type", req.InteractionType),
			logger.WithError(err),
		)
		util.RespondInternalError(c, "failed to record interaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func filterFromQuery(c *gin.Context) recommendations.CandidateFilter {
	return recommendations.CandidateFilter{
		Category:    strings.TrimSpace(c.Query("category")),
		Tag:         strings.TrimSpace(c.Query("tag")),
		ProjectCode: strings.TrimSpace(c.Query("project_code")),
	}
}
