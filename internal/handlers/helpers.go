package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/errors"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/recommendations"
	"github.com/zfogg/reelrank/internal/util"
)

// PostItem is one post in a recommendation response.
type PostItem struct {
	ID              uint             `json:"id"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Identifier      string           `json:"identifier"`
	Score           float64          `json:"score"`
	Tags            []string         `json:"tags"`
	ViewCount       int              `json:"view_count"`
	UpvoteCount     int              `json:"upvote_count"`
	CommentCount    int              `json:"comment_count"`
	ShareCount      int              `json:"share_count"`
	BookmarkCount   int              `json:"bookmark_count"`
	RatingCount     int              `json:"rating_count"`
	AverageRating   float64          `json:"average_rating"`
	IsPublic        bool             `json:"is_available_in_public_feed"`
	IsLocked        bool             `json:"is_locked"`
	Category        *models.Category `json:"category"`
	Topic           *models.Topic    `json:"topic"`
	Owner           *models.Owner    `json:"owner"`
	VideoLink       string           `json:"video_link"`
	ThumbnailURL    string           `json:"thumbnail_url"`
	GifThumbnailURL string           `json:"gif_thumbnail_url"`
	ProjectCode     string           `json:"project_code"`
	CreatedAt       int64            `json:"created_at"`
}

// FeedResponse is the envelope shared by every recommendation endpoint.
type FeedResponse struct {
	Status           string     `json:"status"`
	Posts            []PostItem `json:"post"`
	AlgorithmUsed    string     `json:"algorithm_used"`
	TotalCount       int        `json:"total_count"`
	Page             int        `json:"page"`
	PageSize         int        `json:"page_size"`
	ConfidenceScores []float64  `json:"confidence_scores,omitempty"`
}

func newPostItem(sp recommendations.ScoredPost) PostItem {
	p := &sp.Post
	return PostItem{
		ID:              p.ID,
		Title:           p.Title,
		Slug:            p.Slug,
		Identifier:      p.Identifier(),
		Score:           sp.Score,
		Tags:            recommendations.NormalizeTags(p.Tags).Sorted(),
		ViewCount:       p.ViewCount,
		UpvoteCount:     p.UpvoteCount,
		CommentCount:    p.CommentCount,
		ShareCount:      p.ShareCount,
		BookmarkCount:   p.BookmarkCount,
		RatingCount:     p.RatingCount,
		AverageRating:   p.AverageRating,
		IsPublic:        p.IsAvailableInPublicFeed,
		IsLocked:        p.IsLocked,
		Category:        p.Category,
		Topic:           p.Topic,
		Owner:           p.Owner,
		VideoLink:       p.VideoLink,
		ThumbnailURL:    p.ThumbnailURL,
		GifThumbnailURL: p.GifThumbnailURL,
		ProjectCode:     p.ProjectCode,
		CreatedAt:       p.CreatedAt.UnixMilli(),
	}
}

func newFeedResponse(res *recommendations.FeedResult) FeedResponse {
	items := make([]PostItem, len(res.Posts))
	for i := range res.Posts {
		items[i] = newPostItem(res.Posts[i])
	}
	return FeedResponse{
		Status:           "success",
		Posts:            items,
		AlgorithmUsed:    res.Algorithm,
		TotalCount:       res.TotalCount,
		Page:             res.Page,
		PageSize:         res.PageSize,
		ConfidenceScores: res.ConfidenceScores,
	}
}

// respondReadError maps an engine read failure onto the API error taxonomy.
// Store failures on reads surface as 503: the engine already tried its fallback.
func respondReadError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, recommendations.ErrPostNotFound):
		util.RespondNotFound(c, "post")
	case stderrors.Is(err, recommendations.ErrUserNotFound):
		util.RespondNotFound(c, "user")
	case stderrors.Is(err, recommendations.ErrInvalidRequest):
		util.RespondValidationError(c, "", err.Error())
	case stderrors.Is(err, recommendations.ErrUnavailable):
		util.RespondWithAPIError(c, errors.ServiceUnavailable("recommendations").WithDetails(err.Error()))
	default:
		logger.Log.Error("Recommendation request failed",
			logger.WithRequestID(util.GetRequestID(c)),
			logger.WithError(err),
		)
		util.RespondServiceUnavailable(c, "recommendations")
	}
}

// requireUsername reads and validates the username query parameter.
func requireUsername(c *gin.Context) (string, bool) {
	username, err := util.NormalizeUsername(c.Query("username"))
	if err != nil {
		util.RespondValidationError(c, "username", err.Error())
		return "", false
	}
	return username, true
}

func (h *Handlers) pagination(c *gin.Context) (util.Pagination, bool) {
	cfg := h.config()
	p, apiErr := util.ParsePagination(c, cfg.DefaultPageSize, cfg.MaxPageSize)
	if apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return p, false
	}
	return p, true
}

func respondSuccess(c *gin.Context, payload gin.H) {
	payload["status"] = "success"
	c.JSON(http.StatusOK, payload)
}
