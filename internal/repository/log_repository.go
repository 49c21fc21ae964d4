package repository

import (
	"context"

	"github.com/zfogg/reelrank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecommendationLogRepository appends audit rows and serves the observability viewer.
type RecommendationLogRepository interface {
	Create(ctx context.Context, log *models.RecommendationLog) error
	Recent(ctx context.Context, limit int) ([]models.RecommendationLog, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type recommendationLogRepository struct {
	db *gorm.DB
}

// NewRecommendationLogRepository creates a new recommendation log repository
func NewRecommendationLogRepository(db *gorm.DB) RecommendationLogRepository {
	return &recommendationLogRepository{db: db}
}

func (r *recommendationLogRepository) Create(ctx context.Context, log *models.RecommendationLog) error {
	if log == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(log).Error
}

func (r *recommendationLogRepository) Recent(ctx context.Context, limit int) ([]models.RecommendationLog, error) {
	var logs []models.RecommendationLog
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *recommendationLogRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RecommendationLog{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
