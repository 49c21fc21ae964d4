package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/zfogg/reelrank/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmbeddingNotFound is returned when no vector is stored for the key.
var ErrEmbeddingNotFound = errors.New("embedding not found")

// StoredVector is a decoded embedding row.
type StoredVector struct {
	Vector    []float64
	UpdatedAt time.Time
}

// EmbeddingRepository persists the derived feature vectors.
type EmbeddingRepository interface {
	GetUserEmbedding(ctx context.Context, userID uint, modelVersion string) (*StoredVector, error)
	SaveUserEmbedding(ctx context.Context, userID uint, modelVersion string, vector []float64) error
	DeleteUserEmbeddings(ctx context.Context, userID uint) error

	GetPostEmbedding(ctx context.Context, postID uint, modelVersion string) (*StoredVector, error)
	SavePostEmbedding(ctx context.Context, postID uint, modelVersion string, vector []float64) error

	// GetPostEmbeddings returns stored vectors keyed by post id; ids without a row are absent.
	GetPostEmbeddings(ctx context.Context, postIDs []uint, modelVersion string) (map[uint]*StoredVector, error)
	SavePostEmbeddings(ctx context.Context, modelVersion string, vectors map[uint][]float64) error
}

// embeddingBatchSize keeps IN lists under sqlite's bound parameter limit.
const embeddingBatchSize = 500

type embeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates a new embedding repository
func NewEmbeddingRepository(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepository{db: db}
}

func (r *embeddingRepository) GetUserEmbedding(ctx context.Context, userID uint, modelVersion string) (*StoredVector, error) {
	var row models.UserEmbedding
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND model_version = ?", userID, modelVersion).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmbeddingNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(row.Vector, row.UpdatedAt)
}

func (r *embeddingRepository) SaveUserEmbedding(ctx context.Context, userID uint, modelVersion string, vector []float64) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	row := models.UserEmbedding{
		UserID:       userID,
		ModelVersion: modelVersion,
		Vector:       datatypes.JSON(raw),
		UpdatedAt:    time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "model_version"}},
			DoUpdates: clause.AssignmentColumns([]string{"vector", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *embeddingRepository) DeleteUserEmbeddings(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserEmbedding{}).Error
}

func (r *embeddingRepository) GetPostEmbedding(ctx context.Context, postID uint, modelVersion string) (*StoredVector, error) {
	var row models.PostEmbedding
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND model_version = ?", postID, modelVersion).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmbeddingNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(row.Vector, row.UpdatedAt)
}

func (r *embeddingRepository) SavePostEmbedding(ctx context.Context, postID uint, modelVersion string, vector []float64) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	row := models.PostEmbedding{
		PostID:       postID,
		ModelVersion: modelVersion,
		Vector:       datatypes.JSON(raw),
		UpdatedAt:    time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "model_version"}},
			DoUpdates: clause.AssignmentColumns([]string{"vector", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *embeddingRepository) GetPostEmbeddings(ctx context.Context, postIDs []uint, modelVersion string) (map[uint]*StoredVector, error) {
	out := make(map[uint]*StoredVector, len(postIDs))
	for start := 0; start < len(postIDs); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(postIDs))

		var rows []models.PostEmbedding
		err := r.db.WithContext(ctx).
			Where("post_id IN ? AND model_version = ?", postIDs[start:end], modelVersion).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			vec, err := decodeVector(row.Vector, row.UpdatedAt)
			if err != nil {
				// unreadable rows are regenerated by the caller
				continue
			}
			out[row.PostID] = vec
		}
	}
	return out, nil
}

func (r *embeddingRepository) SavePostEmbeddings(ctx context.Context, modelVersion string, vectors map[uint][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]models.PostEmbedding, 0, len(vectors))
	for postID, vec := range vectors {
		raw, err := json.Marshal(vec)
		if err != nil {
			return err
		}
		rows = append(rows, models.PostEmbedding{
			PostID:       postID,
			ModelVersion: modelVersion,
			Vector:       datatypes.JSON(raw),
			UpdatedAt:    now,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PostID < rows[j].PostID })

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "model_version"}},
			DoUpdates: clause.AssignmentColumns([]string{"vector", "updated_at"}),
		}).
		CreateInBatches(rows, 200).Error
}

func decodeVector(raw datatypes.JSON, updatedAt time.Time) (*StoredVector, error) {
	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, err
	}
	return &StoredVector{Vector: vec, UpdatedAt: updatedAt}, nil
}
