package recommendations

import (
	"context"
	"math"
	"time"

	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/models"
	"go.uber.org/zap"
)

// Strategy names used as combiner weight keys.
const (
	StrategyContent       = "content"
	StrategyPopularity    = "popularity"
	StrategyPreference    = "preference"
	StrategyCollaborative = "collaborative"
	StrategyEmbedding     = "embedding"
	StrategyModel         = "model"
	StrategyRecency       = "recency"
	StrategyTrending      = "trending"
)

// ScoringInput is everything a strategy may read to score a candidate batch.
type ScoringInput struct {
	User       *models.User
	Profile    map[string]float64
	Candidates []models.Post
	SeenCounts map[uint]int
	Now        time.Time
}

// Result holds one score per candidate, aligned with ScoringInput.Candidates.
// An unavailable result carries no scores and contributes nothing.
type Result struct {
	Scores    []float64
	Available bool
}

// Unavailable is the result of a strategy that could not score the batch.
func Unavailable() Result {
	return Result{}
}

func available(scores []float64) Result {
	return Result{Scores: scores, Available: true}
}

// Strategy scores a batch of candidates. Implementations report failure as
// Unavailable rather than an error.
type Strategy interface {
	Score(ctx context.Context, in *ScoringInput) Result
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, in *ScoringInput) Result

func (f StrategyFunc) Score(ctx context.Context, in *ScoringInput) Result {
	return f(ctx, in)
}

// runStrategy isolates a strategy so a panic or misaligned result cannot
// take down the batch.
func runStrategy(ctx context.Context, name string, s Strategy, in *ScoringInput) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Scoring strategy panicked",
				zap.String("strategy", name),
				zap.Any("panic", r),
			)
			res = Unavailable()
		}
	}()

	res = s.Score(ctx, in)
	if res.Available && len(res.Scores) != len(in.Candidates) {
		logger.Log.Warn("Scoring strategy returned misaligned scores",
			zap.String("strategy", name),
			zap.Int("scores", len(res.Scores)),
			zap.Int("candidates", len(in.Candidates)),
		)
		return Unavailable()
	}
	return res
}

// ContentScore sums the profile weights of the post's tags.
func ContentScore(post *models.Post, profile map[string]float64) float64 {
	if len(profile) == 0 {
		return 0
	}
	var score float64
	for _, tag := range NormalizeTags(post.Tags).Sorted() {
		score += profile[tag]
	}
	return score
}

// PopularityScore is log1p(views + 2*upvotes + 3*bookmarks).
func PopularityScore(post *models.Post) float64 {
	pop := post.ViewCount + 2*post.UpvoteCount + 3*post.BookmarkCount
	if pop <= 0 {
		return 0
	}
	return math.Log1p(float64(pop))
}

// RecencyScore favours posts from the last week, then the last month.
func RecencyScore(post *models.Post, now time.Time) float64 {
	age := now.Sub(post.CreatedAt)
	switch {
	case age < 7*24*time.Hour:
		return 1.0
	case age < 30*24*time.Hour:
		return 0.5
	default:
		return 0
	}
}

// minTrendingAgeDays keeps brand-new posts from dividing by ~0.
const minTrendingAgeDays = 1.0 / 24.0

// TrendingScore is weighted engagement per day of age.
func TrendingScore(post *models.Post, now time.Time) float64 {
	engagement := float64(post.ViewCount)*0.3 + float64(post.UpvoteCount)*0.4 + float64(post.ShareCount)*0.3
	ageDays := now.Sub(post.CreatedAt).Hours() / 24
	if ageDays < minTrendingAgeDays {
		ageDays = minTrendingAgeDays
	}
	return engagement / ageDays
}

// preferenceBoost is added when a candidate's category is one the user prefers.
const preferenceBoost = 2.0

// PreferenceScore rewards the user's explicitly preferred categories.
func PreferenceScore(post *models.Post, prefs *models.UserPreferences) float64 {
	if prefs.PrefersCategory(post.CategoryLabel()) {
		return preferenceBoost
	}
	return 0
}

// perPost builds a stateless strategy from a per-candidate scoring function.
func perPost(score func(post *models.Post, in *ScoringInput) float64) Strategy {
	return StrategyFunc(func(ctx context.Context, in *ScoringInput) Result {
		scores := make([]float64, len(in.Candidates))
		for i := range in.Candidates {
			scores[i] = score(&in.Candidates[i], in)
		}
		return available(scores)
	})
}

// ContentStrategy scores tag overlap with the user profile.
func ContentStrategy() Strategy {
	return perPost(func(p *models.Post, in *ScoringInput) float64 {
		return ContentScore(p, in.Profile)
	})
}

// PopularityStrategy scores reported engagement counters.
func PopularityStrategy() Strategy {
	return perPost(func(p *models.Post, _ *ScoringInput) float64 {
		return PopularityScore(p)
	})
}

// PreferenceStrategy is unavailable for users without stored preferences.
func PreferenceStrategy() Strategy {
	return StrategyFunc(func(ctx context.Context, in *ScoringInput) Result {
		if in.User == nil || in.User.Preferences == nil || len(in.User.Preferences.Categories) == 0 {
			return Unavailable()
		}
		return perPost(func(p *models.Post, in *ScoringInput) float64 {
			return PreferenceScore(p, in.User.Preferences)
		}).Score(ctx, in)
	})
}

// RecencyStrategy scores post age buckets.
func RecencyStrategy() Strategy {
	return perPost(func(p *models.Post, in *ScoringInput) float64 {
		return RecencyScore(p, in.Now)
	})
}

// TrendingStrategy scores engagement velocity.
func TrendingStrategy() Strategy {
	return perPost(func(p *models.Post, in *ScoringInput) float64 {
		return TrendingScore(p, in.Now)
	})
}

// ModelScorer is a learned scorer that rates posts for a user.
type ModelScorer interface {
	Enabled() bool
	Score(ctx context.Context, userID uint, postIDs []uint) ([]float64, error)
}

// ModelStrategy defers to a remote learned scorer; it is unavailable when
// the scorer is absent, disabled or failing.
func ModelStrategy(scorer ModelScorer) Strategy {
	return StrategyFunc(func(ctx context.Context, in *ScoringInput) Result {
		if scorer == nil || !scorer.Enabled() || in.User == nil {
			return Unavailable()
		}
		ids := make([]uint, len(in.Candidates))
		for i := range in.Candidates {
			ids[i] = in.Candidates[i].ID
		}
		scores, err := scorer.Score(ctx, in.User.ID, ids)
		if err != nil {
			logger.Log.Debug("Model scorer unavailable", zap.Error(err))
			return Unavailable()
		}
		return available(scores)
	})
}

// CollaborativeStrategy predicts ratings from similar users.
func CollaborativeStrategy(model *CollaborativeModel) Strategy {
	return StrategyFunc(func(ctx context.Context, in *ScoringInput) Result {
		if model == nil || in.User == nil {
			return Unavailable()
		}
		ids := make([]uint, len(in.Candidates))
		for i := range in.Candidates {
			ids[i] = in.Candidates[i].ID
		}
		scores, ok, err := model.Predict(ctx, in.User.ID, ids)
		if err != nil {
			logger.WarnWithFields("Collaborative scoring failed", err, logger.WithUserID(in.User.ID))
			return Unavailable()
		}
		if !ok {
			return Unavailable()
		}
		return available(scores)
	})
}

// EmbeddingStrategy scores cosine similarity between cached user and post vectors.
func EmbeddingStrategy(embeddings *EmbeddingCache) Strategy {
	return StrategyFunc(func(ctx context.Context, in *ScoringInput) Result {
		if embeddings == nil || in.User == nil {
			return Unavailable()
		}
		userVec, err := embeddings.UserVector(ctx, in.User.ID, in.Profile)
		if err != nil {
			logger.WarnWithFields("User embedding unavailable", err, logger.WithUserID(in.User.ID))
			return Unavailable()
		}
		if IsZeroVector(userVec) {
			return Unavailable()
		}

		postVecs, err := embeddings.PostVectors(ctx, in.Candidates)
		if err != nil {
			logger.WarnWithFields("Post embeddings unavailable", err, logger.WithUserID(in.User.ID))
			return Unavailable()
		}

		scores := make([]float64, len(in.Candidates))
		for i := range in.Candidates {
			scores[i] = CosineSimilarity(userVec, postVecs[i])
		}
		return available(scores)
	})
}
