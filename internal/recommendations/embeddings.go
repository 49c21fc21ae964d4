package recommendations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/metrics"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	embeddingKindUser = "user"
	embeddingKindPost = "post"
)

// cachedVector is the Redis-tier encoding of an embedding.
type cachedVector struct {
	Vector    []float64 `json:"vector"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmbeddingCache memoizes user and post feature vectors keyed by
// (kind, entity id, model version). Vectors live in the database, with an
// optional shared cache tier in front. Regeneration is single-flighted per key.
type EmbeddingCache struct {
	repo    repository.EmbeddingRepository
	store   cache.Store
	version string
	dim     int
	userTTL time.Duration

	group singleflight.Group
	now   func() time.Time
}

// NewEmbeddingCache creates a cache; store may be nil to skip the shared tier.
func NewEmbeddingCache(repo repository.EmbeddingRepository, store cache.Store, version string, dim int, userTTL time.Duration) *EmbeddingCache {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &EmbeddingCache{
		repo:    repo,
		store:   store,
		version: version,
		dim:     dim,
		userTTL: userTTL,
		now:     time.Now,
	}
}

// Version is the model version the cache is keyed on.
func (c *EmbeddingCache) Version() string {
	return c.version
}

func (c *EmbeddingCache) key(kind string, id uint) string {
	return cache.Key("embedding", kind, strconv.FormatUint(uint64(id), 10), c.version)
}

// UserVector returns the user's cached vector, regenerating it from profile
// when missing or older than the user TTL.
func (c *EmbeddingCache) UserVector(ctx context.Context, userID uint, profile map[string]float64) ([]float64, error) {
	key := c.key(embeddingKindUser, userID)
	fresh := func(updatedAt time.Time) bool {
		return c.userTTL <= 0 || c.now().Sub(updatedAt) < c.userTTL
	}

	if vec, ok := c.fromStore(ctx, key, fresh); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		stored, err := c.repo.GetUserEmbedding(ctx, userID, c.version)
		switch {
		case err == nil && fresh(stored.UpdatedAt) && len(stored.Vector) == c.dim:
			c.toStore(ctx, key, stored.Vector, stored.UpdatedAt)
			return stored.Vector, nil
		case err != nil && !errors.Is(err, repository.ErrEmbeddingNotFound):
			logger.WarnWithFields("Failed to read user embedding", err, logger.WithUserID(userID))
		}

		vec := UserVector(profile, c.dim)
		if err := c.repo.SaveUserEmbedding(ctx, userID, c.version, vec); err != nil {
			logger.WarnWithFields("Failed to save user embedding", err, logger.WithUserID(userID))
		}
		c.toStore(ctx, key, vec, c.now())
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// PostVector returns the post's cached vector, regenerating it when missing
// or older than the post itself.
func (c *EmbeddingCache) PostVector(ctx context.Context, post *models.Post) ([]float64, error) {
	if post == nil {
		return nil, fmt.Errorf("post vector: nil post")
	}
	key := c.key(embeddingKindPost, post.ID)
	fresh := func(updatedAt time.Time) bool {
		return !updatedAt.Before(post.UpdatedAt)
	}

	if vec, ok := c.fromStore(ctx, key, fresh); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		stored, err := c.repo.GetPostEmbedding(ctx, post.ID, c.version)
		switch {
		case err == nil && fresh(stored.UpdatedAt) && len(stored.Vector) == c.dim:
			c.toStore(ctx, key, stored.Vector, stored.UpdatedAt)
			return stored.Vector, nil
		case err != nil && !errors.Is(err, repository.ErrEmbeddingNotFound):
			logger.WarnWithFields("Failed to read post embedding", err, logger.WithPostID(post.ID))
		}

		vec := PostVector(post, c.dim)
		if err := c.repo.SavePostEmbedding(ctx, post.ID, c.version, vec); err != nil {
			logger.WarnWithFields("Failed to save post embedding", err, logger.WithPostID(post.ID))
		}
		c.toStore(ctx, key, vec, c.now())
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// PostVectors returns one vector per post, aligned with posts. Stored vectors
// are read in one pass; misses are built in memory and saved in one batch.
// The shared cache tier is not consulted here.
func (c *EmbeddingCache) PostVectors(ctx context.Context, posts []models.Post) ([][]float64, error) {
	out := make([][]float64, len(posts))
	if len(posts) == 0 {
		return out, nil
	}

	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	stored, err := c.repo.GetPostEmbeddings(ctx, ids, c.version)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WarnWithFields("Failed to read post embeddings", err, zap.Int("posts", len(posts)))
		stored = nil
	}

	missing := make(map[uint][]float64)
	for i := range posts {
		p := &posts[i]
		if sv, ok := stored[p.ID]; ok && !sv.UpdatedAt.Before(p.UpdatedAt) && len(sv.Vector) == c.dim {
			out[i] = sv.Vector
			continue
		}
		out[i] = PostVector(p, c.dim)
		missing[p.ID] = out[i]
	}
	metrics.RecordCacheLookups("embedding", len(posts)-len(missing), len(missing))

	if len(missing) > 0 {
		if err := c.repo.SavePostEmbeddings(ctx, c.version, missing); err != nil {
			logger.WarnWithFields("Failed to save post embeddings", err, zap.Int("posts", len(missing)))
		}
	}
	return out, nil
}

// InvalidateUser drops the user's vector from both tiers so the next request
// regenerates it from fresh interactions.
func (c *EmbeddingCache) InvalidateUser(ctx context.Context, userID uint) error {
	if c.store != nil {
		if err := c.store.Del(ctx, c.key(embeddingKindUser, userID)); err != nil {
			logger.WarnWithFields("Failed to evict cached user embedding", err, logger.WithUserID(userID))
		}
	}
	return c.repo.DeleteUserEmbeddings(ctx, userID)
}

func (c *EmbeddingCache) fromStore(ctx context.Context, key string, fresh func(time.Time) bool) ([]float64, bool) {
	if c.store == nil {
		return nil, false
	}
	var cv cachedVector
	if err := cache.GetJSON(ctx, c.store, key, &cv); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.Log.Debug("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheLookup("embedding", false)
		return nil, false
	}
	if !fresh(cv.UpdatedAt) || len(cv.Vector) != c.dim {
		metrics.RecordCacheLookup("embedding", false)
		return nil, false
	}
	metrics.RecordCacheLookup("embedding", true)
	return cv.Vector, true
}

func (c *EmbeddingCache) toStore(ctx context.Context, key string, vec []float64, updatedAt time.Time) {
	if c.store == nil {
		return
	}
	ttl := c.userTTL
	if err := cache.SetJSON(ctx, c.store, key, cachedVector{Vector: vec, UpdatedAt: updatedAt}, ttl); err != nil {
		logger.Log.Debug("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}
