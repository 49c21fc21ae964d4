package repository

import "gorm.io/gorm"

// Store bundles the repositories backing the recommendation service.
type Store struct {
	Users        UserRepository
	Posts        PostRepository
	Interactions InteractionRepository
	Embeddings   EmbeddingRepository
	Logs         RecommendationLogRepository
}

// NewStore builds every repository over one connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Users:        NewUserRepository(db),
		Posts:        NewPostRepository(db),
		Interactions: NewInteractionRepository(db),
		Embeddings:   NewEmbeddingRepository(db),
		Logs:         NewRecommendationLogRepository(db),
	}
}
