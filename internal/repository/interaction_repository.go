package repository

import (
	"context"
	"strings"
	"time"

	"github.com/zfogg/reelrank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TypeCount is an interaction total for one interaction type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// UserActivity summarizes how active a user is.
type UserActivity struct {
	UserID           uint   `json:"user_id"`
	Username         string `json:"username"`
	InteractionCount int64  `json:"interaction_count"`
}

// PostActivity summarizes how much a post was interacted with.
type PostActivity struct {
	PostID           uint   `json:"post_id"`
	Title            string `json:"title"`
	ThumbnailURL     string `json:"thumbnail_url"`
	ViewCount        int    `json:"view_count"`
	UpvoteCount      int    `json:"upvote_count"`
	InteractionCount int64  `json:"interaction_count"`
}

// InteractionRepository handles interaction writes and the reads the ranking pipeline needs.
type InteractionRepository interface {
	// Upsert records an interaction. A repeat of (user, post, type) overwrites
	// value and timestamp on the existing row.
	Upsert(ctx context.Context, interaction *models.Interaction) error

	ListByUser(ctx context.Context, userID uint) ([]models.Interaction, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)

	// ListSince returns interactions newer than since (all when zero), without preloads.
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.Interaction, error)

	CountByType(ctx context.Context, userID uint) ([]TypeCount, error)
	GetTotalInteractionCount(ctx context.Context) (int64, error)
	MostActiveUsers(ctx context.Context, limit int) ([]UserActivity, error)
	MostInteractedPosts(ctx context.Context, limit int) ([]PostActivity, error)
}

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) Upsert(ctx context.Context, interaction *models.Interaction) error {
	if interaction == nil || interaction.UserID == 0 || interaction.PostID == 0 {
		return ErrInvalidInput
	}
	interaction.InteractionType = strings.ToLower(strings.TrimSpace(interaction.InteractionType))
	if interaction.InteractionType == "" {
		return ErrInvalidInput
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now().UTC()
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "post_id"},
				{Name: "interaction_type"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"interaction_value", "timestamp"}),
		}).
		Omit(clause.Associations).
		Create(interaction).Error
}

func (r *interactionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Interaction, error) {
	var interactions []models.Interaction
	err := r.db.WithContext(ctx).
		Preload("Post").
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&interactions).Error
	return interactions, err
}

func (r *interactionRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *interactionRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.Interaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Interaction{})
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var interactions []models.Interaction
	err := query.Order("id ASC").Find(&interactions).Error
	return interactions, err
}

func (r *interactionRepository) CountByType(ctx context.Context, userID uint) ([]TypeCount, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Select("interaction_type AS type, COUNT(*) AS count")
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	var counts []TypeCount
	err := query.Group("interaction_type").Order("interaction_type").Scan(&counts).Error
	return counts, err
}

func (r *interactionRepository) GetTotalInteractionCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Interaction{}).Count(&count).Error
	return count, err
}

func (r *interactionRepository) MostActiveUsers(ctx context.Context, limit int) ([]UserActivity, error) {
	var rows []UserActivity
	err := r.db.WithContext(ctx).
		Table("interactions").
		Select("users.id AS user_id, users.username AS username, COUNT(interactions.id) AS interaction_count").
		Joins("JOIN users ON users.id = interactions.user_id").
		Group("users.id, users.username").
		Order("interaction_count DESC").
		Order("users.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *interactionRepository) MostInteractedPosts(ctx context.Context, limit int) ([]PostActivity, error) {
	var rows []PostActivity
	err := r.db.WithContext(ctx).
		Table("interactions").
		Select("posts.id AS post_id, posts.title AS title, posts.thumbnail_url AS thumbnail_url, " +
			"posts.view_count AS view_count, posts.upvote_count AS upvote_count, " +
			"COUNT(interactions.id) AS interaction_count").
		Joins("JOIN posts ON posts.id = interactions.post_id").
		Group("posts.id, posts.title, posts.thumbnail_url, posts.view_count, posts.upvote_count").
		Order("interaction_count DESC").
		Order("posts.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
