package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/reelrank/internal/database"
	"github.com/zfogg/reelrank/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	return db
}

func seedPost(t *testing.T, db *gorm.DB, p models.Post) models.Post {
	if p.Slug == "" {
		p.Slug = p.Title
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func floatPtr(v float64) *float64 { return &v }

func TestGetOrCreateUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupTestDB(t))

	first, err := repo.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	second, err := repo.GetOrCreateUser(ctx, "  alice ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := repo.GetTotalUserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repo.GetOrCreateUser(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))

	_, err := repo.GetUserByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdatePreferences(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupTestDB(t))

	prefs := &models.UserPreferences{Categories: []string{"Education"}, Mood: "calm"}
	_, err := repo.UpdatePreferences(ctx, "bob", prefs)
	require.NoError(t, err)

	user, err := repo.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, user.Preferences)
	assert.Equal(t, []string{"Education"}, user.Preferences.Categories)
	assert.True(t, user.Preferences.PrefersCategory("education"))
}

func TestInteractionUpsertKeepsOneRowAndOverwritesValue(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewInteractionRepository(db)

	user, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	post := seedPost(t, db, models.Post{Title: "p1", IsAvailableInPublicFeed: true})

	require.NoError(t, repo.Upsert(ctx, &models.Interaction{
		UserID: user.ID, PostID: post.ID, InteractionType: "rate", InteractionValue: floatPtr(3),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.Interaction{
		UserID: user.ID, PostID: post.ID, InteractionType: "RATE", InteractionValue: floatPtr(5),
	}))

	var rows []models.Interaction
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].InteractionValue)
	assert.Equal(t, 5.0, *rows[0].InteractionValue)
	assert.Equal(t, "rate", rows[0].InteractionType)

	// A different type on the same post is a separate row.
	require.NoError(t, repo.Upsert(ctx, &models.Interaction{
		UserID: user.ID, PostID: post.ID, InteractionType: "like",
	}))
	count, err := repo.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestInteractionUpsertRejectsIncompleteRows(t *testing.T) {
	repo := NewInteractionRepository(setupTestDB(t))

	assert.ErrorIs(t, repo.Upsert(context.Background(), nil), ErrInvalidInput)
	assert.ErrorIs(t, repo.Upsert(context.Background(), &models.Interaction{PostID: 1, InteractionType: "view"}), ErrInvalidInput)
	assert.ErrorIs(t, repo.Upsert(context.Background(), &models.Interaction{UserID: 1, PostID: 1}), ErrInvalidInput)
}

func TestListByUserPreloadsPosts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewInteractionRepository(db)

	user, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	post := seedPost(t, db, models.Post{Title: "tagged", Tags: datatypes.JSON(`["Python"]`), IsAvailableInPublicFeed: true})
	require.NoError(t, repo.Upsert(ctx, &models.Interaction{UserID: user.ID, PostID: post.ID, InteractionType: "like"}))

	interactions, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	require.NotNil(t, interactions[0].Post)
	assert.Equal(t, "tagged", interactions[0].Post.Title)
}

func TestInteractionAggregates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewInteractionRepository(db)

	user, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	p1 := seedPost(t, db, models.Post{Title: "p1", IsAvailableInPublicFeed: true})
	seedPost(t, db, models.Post{Title: "p2", IsAvailableInPublicFeed: true})

	for _, typ := range []string{"view", "like", "share"} {
		require.NoError(t, repo.Upsert(ctx, &models.Interaction{UserID: user.ID, PostID: p1.ID, InteractionType: typ}))
	}

	byType, err := repo.CountByType(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, byType, 3)

	active, err := repo.MostActiveUsers(ctx, 5)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(3), active[0].InteractionCount)

	popular, err := repo.MostInteractedPosts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, p1.ID, popular[0].PostID)
}

func TestListEligibleFilters(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	seedPost(t, db, models.Post{
		Title: "edu-python", IsAvailableInPublicFeed: true, ProjectCode: "ABC",
		Category: &models.Category{Name: "Education"}, Tags: datatypes.JSON(`["Python","Programming"]`),
	})
	seedPost(t, db, models.Post{
		Title: "edu-go", IsAvailableInPublicFeed: true, ProjectCode: "xyz",
		Category: &models.Category{Name: "education"}, Tags: datatypes.JSON(`["go"]`),
	})
	seedPost(t, db, models.Post{
		Title: "locked", IsAvailableInPublicFeed: true, IsLocked: true,
		Category: &models.Category{Name: "Education"},
	})
	seedPost(t, db, models.Post{Title: "hidden", IsAvailableInPublicFeed: false})
	seedPost(t, db, models.Post{Title: "motivation", IsAvailableInPublicFeed: true, Category: &models.Category{Name: "Motivation"}})

	all, err := repo.ListEligible(ctx, PostQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	edu, err := repo.ListEligible(ctx, PostQuery{Category: "EDUCATION"})
	require.NoError(t, err)
	assert.Len(t, edu, 2)

	abc, err := repo.ListEligible(ctx, PostQuery{Category: "education", ProjectCode: "abc"})
	require.NoError(t, err)
	require.Len(t, abc, 1)
	assert.Equal(t, "edu-python", abc[0].Title)

	tagged, err := repo.ListEligible(ctx, PostQuery{TagContains: "python"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)

	limited, err := repo.ListEligible(ctx, PostQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	excluded, err := repo.ListEligible(ctx, PostQuery{ExcludeIDs: []uint{abc[0].ID}})
	require.NoError(t, err)
	assert.Len(t, excluded, 2)
}

func TestListEligibleTagMatchesEscapedJSON(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	public := func(title string, tags string) {
		seedPost(t, db, models.Post{Title: title, IsAvailableInPublicFeed: true, Tags: datatypes.JSON(tags)})
	}
	public("html-escaped", `["r\u0026d"]`)
	public("nested-string", `"[\"r\\u0026d\"]"`)
	public("ascii-escaped", `["caf\u00E9"]`)
	public("raw-unicode", `["café"]`)
	public("percent", `["100%"]`)
	public("percent-decoy", `["1000"]`)
	public("underscore", `["a_b"]`)
	public("underscore-decoy", `["axb"]`)

	titles := func(q PostQuery) []string {
		posts, err := repo.ListEligible(ctx, q)
		require.NoError(t, err)
		out := make([]string, len(posts))
		for i, p := range posts {
			out[i] = p.Title
		}
		return out
	}

	assert.ElementsMatch(t, []string{"html-escaped", "nested-string"}, titles(PostQuery{TagContains: "r&d"}))
	assert.ElementsMatch(t, []string{"ascii-escaped", "raw-unicode"}, titles(PostQuery{TagContains: "café"}))
	assert.Equal(t, []string{"percent"}, titles(PostQuery{TagContains: "100%"}))
	assert.Equal(t, []string{"underscore"}, titles(PostQuery{TagContains: "a_b"}))
}

func TestListEligibleCreatedAfter(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	seedPost(t, db, models.Post{Title: "old", IsAvailableInPublicFeed: true, CreatedAt: time.Now().UTC().Add(-30 * 24 * time.Hour)})
	seedPost(t, db, models.Post{Title: "new", IsAvailableInPublicFeed: true})

	recent, err := repo.ListEligible(ctx, PostQuery{CreatedAfter: time.Now().UTC().Add(-7 * 24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].Title)
}

func TestUpsertPostsRefreshesCounters(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewPostRepository(db)

	require.NoError(t, repo.UpsertPosts(ctx, []models.Post{{Title: "a", Slug: "a-slug", ViewCount: 1, IsAvailableInPublicFeed: true}}))
	require.NoError(t, repo.UpsertPosts(ctx, []models.Post{{
		Title: "a", Slug: "a-slug", ViewCount: 10, IsAvailableInPublicFeed: true,
		Topic: &models.Topic{Name: "t", ProjectCode: "PC1"},
	}}))

	count, err := repo.GetTotalPostCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var post models.Post
	require.NoError(t, db.Where("slug = ?", "a-slug").First(&post).Error)
	assert.Equal(t, 10, post.ViewCount)
	assert.Equal(t, "PC1", post.ProjectCode)
	require.NotNil(t, post.Topic)
	assert.Equal(t, "t", post.Topic.Name)
}

func TestGetPostNotFound(t *testing.T) {
	repo := NewPostRepository(setupTestDB(t))

	_, err := repo.GetPost(context.Background(), 42)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestEmbeddingsUpsertByVersion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEmbeddingRepository(db)

	_, err := repo.GetUserEmbedding(ctx, 1, "v1.0")
	assert.ErrorIs(t, err, ErrEmbeddingNotFound)

	require.NoError(t, repo.SaveUserEmbedding(ctx, 1, "v1.0", []float64{1, 0}))
	require.NoError(t, repo.SaveUserEmbedding(ctx, 1, "v1.0", []float64{0, 1}))
	require.NoError(t, repo.SaveUserEmbedding(ctx, 1, "v2.0", []float64{0.5, 0.5}))

	got, err := repo.GetUserEmbedding(ctx, 1, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, got.Vector)

	var count int64
	require.NoError(t, db.Model(&models.UserEmbedding{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.DeleteUserEmbeddings(ctx, 1))
	_, err = repo.GetUserEmbedding(ctx, 1, "v2.0")
	assert.ErrorIs(t, err, ErrEmbeddingNotFound)

	require.NoError(t, repo.SavePostEmbedding(ctx, 7, "v1.0", []float64{0.25}))
	post, err := repo.GetPostEmbedding(ctx, 7, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25}, post.Vector)
}

func TestRecommendationLogs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewRecommendationLogRepository(db)

	user, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)

	entry, err := models.NewRecommendationLog(models.RecommendationLogParams{
		UserID:    user.ID,
		PostIDs:   []uint{3, 1, 2},
		Algorithm: "trending",
		Scores:    []float64{0.9, 0.6, 0.3},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, entry))

	logs, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "trending", logs[0].AlgorithmUsed)
	assert.Equal(t, 3, logs[0].PostCount())
	assert.InDelta(t, 0.6, logs[0].AverageConfidence(), 1e-9)
	require.NotNil(t, logs[0].User)
	assert.Equal(t, "alice", logs[0].User.Username)

	count, err := repo.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPostEmbeddingsInBatches(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEmbeddingRepository(db)

	vectors := make(map[uint][]float64)
	for id := uint(1); id <= 1200; id++ {
		vectors[id] = []float64{float64(id), 1}
	}
	require.NoError(t, repo.SavePostEmbeddings(ctx, "v1.0", vectors))
	require.NoError(t, repo.SavePostEmbeddings(ctx, "v1.0", map[uint][]float64{5: {0, 0}}))

	ids := make([]uint, 0, 1201)
	for id := uint(1); id <= 1201; id++ {
		ids = append(ids, id)
	}
	got, err := repo.GetPostEmbeddings(ctx, ids, "v1.0")
	require.NoError(t, err)
	assert.Len(t, got, 1200)
	assert.NotContains(t, got, uint(1201))
	assert.Equal(t, []float64{0, 0}, got[5].Vector, "second save overwrites")
	assert.Equal(t, []float64{1200, 1}, got[1200].Vector)

	other, err := repo.GetPostEmbeddings(ctx, ids[:10], "v2.0")
	require.NoError(t, err)
	assert.Empty(t, other)
}
