package recommendations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/config"
	"github.com/zfogg/reelrank/internal/database"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*gorm.DB, *repository.Store) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	return db, repository.NewStore(db)
}

func seedPost(t *testing.T, db *gorm.DB, p models.Post) models.Post {
	t.Helper()
	if p.Slug == "" {
		p.Slug = fmt.Sprintf("%s-%d", p.Title, time.Now().UnixNano())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Add(-time.Hour)
	}
	p.IsAvailableInPublicFeed = true
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedUser(t *testing.T, store *repository.Store, username string) *models.User {
	t.Helper()
	user, err := store.Users.GetOrCreateUser(context.Background(), username)
	require.NoError(t, err)
	return user
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *repository.Store, *gorm.DB) {
	t.Helper()
	db, store := newTestStore(t)
	e := NewEngine(config.Default(), store, opts...)
	t.Cleanup(e.Wait)
	return e, store, db
}

func resultIDs(res *FeedResult) []uint {
	return res.PostIDs()
}

func TestFeedColdStartForNewUser(t *testing.T) {
	ctx := context.Background()
	e, store, db := newTestEngine(t)
	quiet := seedPost(t, db, models.Post{Title: "quiet"})
	busy := seedPost(t, db, models.Post{Title: "busy", ViewCount: 100, UpvoteCount: 10, BookmarkCount: 5})
	seedPost(t, db, models.Post{Title: "locked", ViewCount: 1000, IsLocked: true})

	res, err := e.Feed(ctx, FeedRequest{Username: "newuser", Page: 1, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, AlgorithmColdStart, res.Algorithm)
	assert.Equal(t, []uint{busy.ID, quiet.ID}, resultIDs(res))
	assert.Equal(t, 2, res.TotalCount)
	assert.False(t, res.Fallback)

	user, err := store.Users.GetUserByUsername(ctx, "newuser")
	require.NoError(t, err)

	e.Wait()
	logged, err := store.Logs.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), logged)
}

func TestFeedPersonalizedAfterThreshold(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)

	var seen []models.Post
	for i := 0; i < 5; i++ {
		seen = append(seen, seedPost(t, db, models.Post{
			Title: fmt.Sprintf("seen-%d", i),
			Tags:  datatypes.JSON(`["python"]`),
		}))
	}
	unseen := seedPost(t, db, models.Post{Title: "unseen", Tags: datatypes.JSON(`["python"]`)})
	other := seedPost(t, db, models.Post{Title: "other", Tags: datatypes.JSON(`["cooking"]`)})

	for _, p := range seen {
		_, err := e.RecordInteraction(ctx, InteractionRequest{Username: "alice", PostID: p.ID, Type: "view"})
		require.NoError(t, err)
	}

	res, err := e.Feed(ctx, FeedRequest{Username: "alice", Page: 1, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, AlgorithmHybrid, res.Algorithm, "embedding contributes once a profile exists")
	ids := resultIDs(res)
	require.Len(t, ids, 7)
	assert.Equal(t, unseen.ID, ids[0], "matching tags without the seen penalty rank first")
	assert.Equal(t, other.ID, ids[len(ids)-1])
}

func TestFeedWithoutUsernameIsInvalid(t *testing.T) {
	e, _, db := newTestEngine(t)
	seedPost(t, db, models.Post{Title: "p"})

	_, err := e.Feed(context.Background(), FeedRequest{Username: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCategoryFeed(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	inProject := seedPost(t, db, models.Post{Title: "in", ProjectCode: "ABC"})
	seedPost(t, db, models.Post{Title: "out", ProjectCode: "XYZ"})

	empty, err := e.CategoryFeed(ctx, FeedRequest{Username: "carol"})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmCategory, empty.Algorithm)
	assert.Empty(t, empty.Posts)

	res, err := e.CategoryFeed(ctx, FeedRequest{Username: "carol", Filter: CandidateFilter{ProjectCode: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmColdStart, res.Algorithm, "carol has no history yet")
	assert.Equal(t, []uint{inProject.ID}, resultIDs(res))
}

func TestCategoryFeedColdStartKeepsFilterAndRecency(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	now := time.Now().UTC()
	old := seedPost(t, db, models.Post{Title: "old", ProjectCode: "ABC", ViewCount: 10, CreatedAt: now.Add(-60 * 24 * time.Hour)})
	fresh := seedPost(t, db, models.Post{Title: "fresh", ProjectCode: "ABC", ViewCount: 5, CreatedAt: now.Add(-time.Hour)})
	seedPost(t, db, models.Post{Title: "elsewhere", ProjectCode: "XYZ", ViewCount: 500})

	res, err := e.CategoryFeed(ctx, FeedRequest{Username: "brandnew", Filter: CandidateFilter{ProjectCode: "ABC"}})
	require.NoError(t, err)

	assert.Equal(t, AlgorithmColdStart, res.Algorithm)
	assert.Equal(t, []uint{fresh.ID, old.ID}, resultIDs(res), "recency lifts the fresh post over the busier old one")
	assert.False(t, res.Fallback)
}

func TestCategoryFeedAppliesSeenPenalty(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)

	seen := seedPost(t, db, models.Post{Title: "seen", ProjectCode: "ABC", Tags: datatypes.JSON(`["jazz"]`)})
	unseen := seedPost(t, db, models.Post{Title: "unseen", ProjectCode: "ABC", Tags: datatypes.JSON(`["jazz"]`)})
	var history []models.Post
	history = append(history, seen)
	for i := 0; i < 4; i++ {
		history = append(history, seedPost(t, db, models.Post{
			Title:       fmt.Sprintf("history-%d", i),
			ProjectCode: "XYZ",
			Tags:        datatypes.JSON(`["jazz"]`),
		}))
	}
	for _, p := range history {
		_, err := e.RecordInteraction(ctx, InteractionRequest{Username: "erin", PostID: p.ID, Type: "view"})
		require.NoError(t, err)
	}

	filter := CandidateFilter{ProjectCode: "ABC"}
	category, err := e.CategoryFeed(ctx, FeedRequest{Username: "erin", Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmCategory, category.Algorithm)
	require.Equal(t, []uint{unseen.ID, seen.ID}, resultIDs(category), "the seen post drops below its twin")
	assert.InDelta(t, 0.5, category.Posts[0].Score-category.Posts[1].Score, 1e-9)

	plain, err := e.Feed(ctx, FeedRequest{Username: "erin", Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, resultIDs(category), resultIDs(plain))
	assert.Equal(t, category.Scores(), plain.Scores(), "both paths score the filtered set the same way")
}

func TestFeedTagFilter(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	match := seedPost(t, db, models.Post{Title: "go", Tags: datatypes.JSON(`["go","backend"]`)})
	seedPost(t, db, models.Post{Title: "golang-ish", Tags: datatypes.JSON(`["gopher"]`)})

	res, err := e.Feed(ctx, FeedRequest{Username: "dave", Filter: CandidateFilter{Tag: "Go"}})
	require.NoError(t, err)
	assert.Equal(t, []uint{match.ID}, resultIDs(res))
}

func TestTrendingWindowAndCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryStore()
	e, _, db := newTestEngine(t, WithCache(mem))

	recent := seedPost(t, db, models.Post{Title: "recent", ViewCount: 10})
	seedPost(t, db, models.Post{
		Title:     "old",
		ViewCount: 100000,
		CreatedAt: time.Now().UTC().Add(-10 * 24 * time.Hour),
	})

	res, err := e.Trending(ctx, TrendingRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmTrending, res.Algorithm)
	assert.Equal(t, []uint{recent.ID}, resultIDs(res))
	assert.False(t, res.CacheHit)

	again, err := e.Trending(ctx, TrendingRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, resultIDs(res), resultIDs(again))
}

func TestTrendingCategoryFilter(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	music := seedPost(t, db, models.Post{Title: "m", Category: &models.Category{Name: "Music"}})
	seedPost(t, db, models.Post{Title: "e", Category: &models.Category{Name: "Education"}})

	res, err := e.Trending(ctx, TrendingRequest{Category: "music"})
	require.NoError(t, err)
	assert.Equal(t, []uint{music.ID}, resultIDs(res))
}

func TestSimilarPosts(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	ref := seedPost(t, db, models.Post{Title: "ref", Tags: datatypes.JSON(`["python","programming"]`)})
	twin := seedPost(t, db, models.Post{Title: "twin", Tags: datatypes.JSON(`["Python","programming"]`)})
	seedPost(t, db, models.Post{Title: "far", Tags: datatypes.JSON(`["cooking"]`)})

	res, err := e.Similar(ctx, SimilarRequest{PostID: ref.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmSimilar, res.Algorithm)
	assert.Equal(t, []uint{twin.ID}, resultIDs(res))
	require.Len(t, res.ConfidenceScores, 1)
	assert.InDelta(t, 1.0, res.ConfidenceScores[0], 1e-9)

	_, err = e.Similar(ctx, SimilarRequest{PostID: 9999})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestFeedTimeoutFallsBackToTrending(t *testing.T) {
	ctx := context.Background()
	blocking := StrategyFunc(func(ctx context.Context, in *ScoringInput) Result {
		<-ctx.Done()
		return Unavailable()
	})

	db, store := newTestStore(t)
	cfg := config.Default()
	cfg.RequestTimeout = 50 * time.Millisecond
	e := NewEngine(cfg, store, WithStrategy(StrategyPopularity, blocking))
	t.Cleanup(e.Wait)

	post := seedPost(t, db, models.Post{Title: "p", ViewCount: 3})

	res, err := e.Feed(ctx, FeedRequest{Username: "newuser", Page: 1, PageSize: 5})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, AlgorithmTrending, res.Algorithm)
	assert.Equal(t, []uint{post.ID}, resultIDs(res))
}

func TestFeedForUserID(t *testing.T) {
	ctx := context.Background()
	e, store, db := newTestEngine(t)
	seedPost(t, db, models.Post{Title: "p"})
	user := seedUser(t, store, "erin")

	res, err := e.FeedForUserID(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmColdStart, res.Algorithm)
	assert.Len(t, res.Posts, 1)

	missing, err := e.FeedForUserID(ctx, 4242, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, missing.Posts)
}

func TestRecordInteraction(t *testing.T) {
	ctx := context.Background()
	e, store, db := newTestEngine(t)
	post := seedPost(t, db, models.Post{Title: "p"})

	_, err := e.RecordInteraction(ctx, InteractionRequest{Username: "frank", PostID: post.ID, Type: "dislike"})
	assert.ErrorIs(t, err, ErrInvalidInteraction)

	_, err = e.RecordInteraction(ctx, InteractionRequest{Username: "frank", PostID: 9999, Type: "like"})
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = e.RecordInteraction(ctx, InteractionRequest{Username: "frank", PostID: post.ID, Type: "RATE", Value: floatPtr(3)})
	require.NoError(t, err)
	_, err = e.RecordInteraction(ctx, InteractionRequest{Username: "frank", PostID: post.ID, Type: "rate", Value: floatPtr(4)})
	require.NoError(t, err)

	user, err := store.Users.GetUserByUsername(ctx, "frank")
	require.NoError(t, err)
	interactions, err := store.Interactions.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	require.NotNil(t, interactions[0].InteractionValue)
	assert.Equal(t, 4.0, *interactions[0].InteractionValue)

	refreshed, err := store.Posts.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, refreshed.ViewCount+refreshed.UpvoteCount+refreshed.RatingCount, "counters are externally reported")
}

func TestRecordInteractionInvalidatesUserEmbedding(t *testing.T) {
	ctx := context.Background()
	e, store, db := newTestEngine(t)
	post := seedPost(t, db, models.Post{Title: "p", Tags: datatypes.JSON(`["x"]`)})
	user := seedUser(t, store, "gina")

	_, err := e.embeddings.UserVector(ctx, user.ID, map[string]float64{"x": 1})
	require.NoError(t, err)

	_, err = e.RecordInteraction(ctx, InteractionRequest{Username: "gina", PostID: post.ID, Type: "like"})
	require.NoError(t, err)

	_, err = store.Embeddings.GetUserEmbedding(ctx, user.ID, e.embeddings.Version())
	assert.ErrorIs(t, err, repository.ErrEmbeddingNotFound)
}

func TestUserProfileStatsAndLogs(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	post := seedPost(t, db, models.Post{
		Title:    "p",
		Tags:     datatypes.JSON(`["python","programming"]`),
		Category: &models.Category{Name: "Education"},
	})

	_, err := e.UserProfile(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = e.RecordInteraction(ctx, InteractionRequest{Username: "alice", PostID: post.ID, Type: "rate", Value: floatPtr(5)})
	require.NoError(t, err)
	_, err = e.UpdatePreferences(ctx, "alice", &models.UserPreferences{Categories: []string{"Education"}, Mood: "focused"})
	require.NoError(t, err)

	_, err = e.Feed(ctx, FeedRequest{Username: "alice", Mood: "focused", Filter: CandidateFilter{Category: "education"}})
	require.NoError(t, err)
	e.Wait()

	profile, err := e.UserProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Engagement.Total)
	assert.Equal(t, []TagWeight{{Tag: "programming", Weight: 1.5}, {Tag: "python", Weight: 1.5}}, profile.TagProfile)
	require.NotNil(t, profile.Preferences)
	assert.Equal(t, "focused", profile.Preferences.Mood)
	assert.Equal(t, int64(1), profile.RecommendationsServed)

	stats, err := e.InteractionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalInteractions)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalPosts)
	require.Len(t, stats.MostActiveUsers, 1)
	assert.Equal(t, "alice", stats.MostActiveUsers[0].Username)
	require.Len(t, stats.MostInteractedPosts, 1)
	assert.Equal(t, post.ID, stats.MostInteractedPosts[0].PostID)

	logs, err := e.RecentLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "alice", logs[0].Username)
	assert.Equal(t, AlgorithmColdStart, logs[0].Algorithm)
	assert.Equal(t, 1, logs[0].PostCount)
	assert.Equal(t, "focused", logs[0].RequestParams["mood"])
	assert.Equal(t, "education", logs[0].RequestParams["category"])
}

func TestRebuildCollaborative(t *testing.T) {
	ctx := context.Background()
	e, _, db := newTestEngine(t)
	post := seedPost(t, db, models.Post{Title: "p"})
	for _, name := range []string{"u1", "u2", "u3"} {
		_, err := e.RecordInteraction(ctx, InteractionRequest{Username: name, PostID: post.ID, Type: "view"})
		require.NoError(t, err)
	}

	users, err := e.RebuildCollaborative(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, users)
}

func TestColdStartBaseSetIsBounded(t *testing.T) {
	ctx := context.Background()
	db, store := newTestStore(t)
	cfg := config.Default()
	cfg.MaxRecommendations = 2
	e := NewEngine(cfg, store)
	t.Cleanup(e.Wait)

	for i := 0; i < 6; i++ {
		seedPost(t, db, models.Post{Title: fmt.Sprintf("p-%d", i), ViewCount: i})
	}

	res, err := e.Feed(ctx, FeedRequest{Username: "newuser", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmColdStart, res.Algorithm)
	assert.Equal(t, 4, res.TotalCount, "cold start ranks at most twice MaxRecommendations candidates")
}
