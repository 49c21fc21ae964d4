package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserEmbedding caches a user feature vector for one model version.
type UserEmbedding struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;uniqueIndex:idx_user_embeddings_version,priority:1" json:"user_id"`
	ModelVersion string         `gorm:"not null;size:32;uniqueIndex:idx_user_embeddings_version,priority:2" json:"model_version"`
	Vector       datatypes.JSON `gorm:"not null" json:"vector"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PostEmbedding caches a post feature vector for one model version.
type PostEmbedding struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	PostID       uint           `gorm:"not null;uniqueIndex:idx_post_embeddings_version,priority:1" json:"post_id"`
	ModelVersion string         `gorm:"not null;size:32;uniqueIndex:idx_post_embeddings_version,priority:2" json:"model_version"`
	Vector       datatypes.JSON `gorm:"not null" json:"vector"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
