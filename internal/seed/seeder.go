package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Seed rows are namespaced so Clean never touches real data.
const (
	userPrefix = "seed_"
	slugPrefix = "seed-"
)

var (
	categories = []string{"Education", "Technology", "Food", "Music", "Travel", "Fitness", "Art", "Finance"}
	moods      = []string{"focused", "relaxed", "curious", "energetic"}

	// tags per category, so seeded users develop coherent tag profiles
	categoryTags = map[string][]string{
		"Education":  {"python", "programming", "math", "history", "tutorial"},
		"Technology": {"ai", "gadgets", "programming", "go", "startups"},
		"Food":       {"cooking", "baking", "vegan", "recipes", "street food"},
		"Music":      {"guitar", "production", "live", "jazz", "synth"},
		"Travel":     {"hiking", "cities", "backpacking", "islands", "roadtrip"},
		"Fitness":    {"yoga", "running", "strength", "mobility", "nutrition"},
		"Art":        {"painting", "animation", "design", "photography", "sketch"},
		"Finance":    {"crypto", "investing", "budgeting", "defi", "markets"},
	}

	// interaction types weighted towards passive actions, like real traffic
	interactionMix = []string{
		models.InteractionView, models.InteractionView, models.InteractionView, models.InteractionView,
		models.InteractionLike, models.InteractionLike,
		models.InteractionBookmark,
		models.InteractionShare,
		models.InteractionRate,
		models.InteractionComment,
		models.InteractionInspire,
	}
)

// Options sizes a development seed run.
type Options struct {
	Users        int
	Posts        int
	Interactions int
}

// DefaultOptions is the size used by `seed dev`.
func DefaultOptions() Options {
	return Options{Users: 200, Posts: 1000, Interactions: 8000}
}

// Seeder handles database seeding operations. It only writes users, posts and
// interactions; nothing it does feeds back into scoring logic.
type Seeder struct {
	db    *gorm.DB
	store *repository.Store
}

// NewSeeder creates a new seeder instance. A zero seed uses the current time.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	_ = gofakeit.Seed(seed)
	return &Seeder{db: db, store: repository.NewStore(db)}
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev(ctx context.Context, opts Options) error {
	logger.Log.Info("Creating users...", zap.Int("count", opts.Users))
	users, err := s.seedUsers(ctx, opts.Users)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating posts...", zap.Int("count", opts.Posts))
	posts, err := s.seedPosts(ctx, users, opts.Posts)
	if err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}

	logger.Log.Info("Creating interactions...", zap.Int("count", opts.Interactions))
	if err := s.seedInteractions(ctx, users, posts, opts.Interactions); err != nil {
		return fmt.Errorf("failed to seed interactions: %w", err)
	}

	return nil
}

// Clean removes seed rows and everything that references them.
func (s *Seeder) Clean(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	seedUsers := db.Model(&models.User{}).Select("id").Where("username LIKE ?", userPrefix+"%")
	seedPosts := db.Model(&models.Post{}).Select("id").Where("slug LIKE ?", slugPrefix+"%")

	steps := []struct {
		name string
		run  func() error
	}{
		{"recommendation_logs", func() error {
			return db.Where("user_id IN (?)", seedUsers).Delete(&models.RecommendationLog{}).Error
		}},
		{"user_embeddings", func() error {
			return db.Where("user_id IN (?)", seedUsers).Delete(&models.UserEmbedding{}).Error
		}},
		{"post_embeddings", func() error {
			return db.Where("post_id IN (?)", seedPosts).Delete(&models.PostEmbedding{}).Error
		}},
		{"interactions", func() error {
			return db.Where("user_id IN (?) OR post_id IN (?)", seedUsers, seedPosts).Delete(&models.Interaction{}).Error
		}},
		{"posts", func() error {
			return db.Where("slug LIKE ?", slugPrefix+"%").Delete(&models.Post{}).Error
		}},
		{"users", func() error {
			return db.Where("username LIKE ?", userPrefix+"%").Delete(&models.User{}).Error
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("failed to clean %s: %w", step.name, err)
		}
	}
	return nil
}

// Summary counts the seed rows currently in the database.
type Summary struct {
	Users        int64
	Posts        int64
	Interactions int64
	Samples      []models.Post
}

// Verify reports what SeedDev left behind, with a few sample posts.
func (s *Seeder) Verify(ctx context.Context) (*Summary, error) {
	db := s.db.WithContext(ctx)
	var sum Summary

	if err := db.Model(&models.User{}).Where("username LIKE ?", userPrefix+"%").Count(&sum.Users).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Post{}).Where("slug LIKE ?", slugPrefix+"%").Count(&sum.Posts).Error; err != nil {
		return nil, err
	}
	seedUsers := db.Model(&models.User{}).Select("id").Where("username LIKE ?", userPrefix+"%")
	if err := db.Model(&models.Interaction{}).Where("user_id IN (?)", seedUsers).Count(&sum.Interactions).Error; err != nil {
		return nil, err
	}
	if err := db.Where("slug LIKE ?", slugPrefix+"%").Order("view_count DESC").Limit(3).Find(&sum.Samples).Error; err != nil {
		return nil, err
	}
	return &sum, nil
}

// seedUsers creates users, about a third of them with explicit preferences
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	seen := make(map[string]bool, count)

	for len(users) < count {
		username := userPrefix + strings.ToLower(gofakeit.Username())
		if seen[username] {
			continue
		}
		seen[username] = true

		user, err := s.store.Users.GetOrCreateUser(ctx, username)
		if err != nil {
			return nil, err
		}

		if gofakeit.Number(0, 2) == 0 {
			prefs := &models.UserPreferences{
				Categories: pickDistinct(categories, gofakeit.Number(1, 3)),
				Mood:       gofakeit.RandomString(moods),
			}
			if user, err = s.store.Users.UpdatePreferences(ctx, username, prefs); err != nil {
				return nil, err
			}
		}
		users = append(users, *user)
	}

	logger.Log.Info("Created seed users", zap.Int("count", len(users)))
	return users, nil
}

// seedPosts creates posts with a long-tail popularity distribution: most posts
// are quiet, a few are very popular.
func (s *Seeder) seedPosts(ctx context.Context, owners []models.User, count int) ([]models.Post, error) {
	if count == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	posts := make([]models.Post, 0, count)
	for i := 0; i < count; i++ {
		category := gofakeit.RandomString(categories)
		projectCode := strings.ToLower(category[:3]) + fmt.Sprintf("%02d", gofakeit.Number(1, 5))
		tags := pickDistinct(categoryTags[category], gofakeit.Number(1, 4))
		rawTags, err := encodeTags(tags, i)
		if err != nil {
			return nil, err
		}

		views := gofakeit.Number(0, 200)
		if gofakeit.Number(1, 20) == 1 {
			views = gofakeit.Number(1000, 50000)
		}
		ratingCount := gofakeit.Number(0, views/20+1)

		ownerName := gofakeit.Username()
		if len(owners) > 0 {
			ownerName = strings.TrimPrefix(owners[gofakeit.Number(0, len(owners)-1)].Username, userPrefix)
		}

		slug := fmt.Sprintf("%s%s", slugPrefix, gofakeit.UUID())
		createdAt := gofakeit.DateRange(now.AddDate(0, 0, -30), now).UTC()

		posts = append(posts, models.Post{
			Title:                   strings.TrimSuffix(gofakeit.HipsterSentence(), "."),
			Slug:                    slug,
			ViewCount:               views,
			UpvoteCount:             gofakeit.Number(0, views/5+1),
			CommentCount:            gofakeit.Number(0, views/10+1),
			ShareCount:              gofakeit.Number(0, views/15+1),
			BookmarkCount:           gofakeit.Number(0, views/12+1),
			RatingCount:             ratingCount,
			AverageRating:           averageRating(ratingCount),
			IsAvailableInPublicFeed: gofakeit.Number(1, 10) > 1,
			IsLocked:                gofakeit.Number(1, 25) == 1,
			VideoLink:               fmt.Sprintf("https://cdn.example.com/videos/%s.mp4", slug),
			ThumbnailURL:            fmt.Sprintf("https://cdn.example.com/thumbs/%s.jpg", slug),
			GifThumbnailURL:         fmt.Sprintf("https://cdn.example.com/thumbs/%s.gif", slug),
			Tags:                    rawTags,
			Owner:                   &models.Owner{Username: ownerName, Name: gofakeit.Name()},
			Category:                &models.Category{Name: category},
			Topic: &models.Topic{
				Name:        gofakeit.Word(),
				ProjectCode: projectCode,
				IsPublic:    true,
			},
			ProjectCode: projectCode,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		})
	}

	if err := s.store.Posts.UpsertPosts(ctx, posts); err != nil {
		return nil, err
	}

	var stored []models.Post
	if err := s.db.WithContext(ctx).Where("slug LIKE ?", slugPrefix+"%").Find(&stored).Error; err != nil {
		return nil, err
	}
	logger.Log.Info("Created seed posts", zap.Int("count", len(stored)))
	return stored, nil
}

// seedInteractions has each user favour the categories of their preferences,
// or a random pair, so collaborative neighbours exist.
func (s *Seeder) seedInteractions(ctx context.Context, users []models.User, posts []models.Post, count int) error {
	if len(users) == 0 || len(posts) == 0 {
		return nil
	}

	byCategory := make(map[string][]models.Post)
	for _, p := range posts {
		name := p.CategoryLabel()
		byCategory[name] = append(byCategory[name], p)
	}

	now := time.Now().UTC()
	written := 0
	for i := 0; i < count; i++ {
		user := users[gofakeit.Number(0, len(users)-1)]
		post := posts[gofakeit.Number(0, len(posts)-1)]

		favourites := pickDistinct(categories, 2)
		if user.Preferences != nil && len(user.Preferences.Categories) > 0 {
			favourites = user.Preferences.Categories
		}
		if gofakeit.Number(1, 10) <= 7 {
			if pool := byCategory[gofakeit.RandomString(favourites)]; len(pool) > 0 {
				post = pool[gofakeit.Number(0, len(pool)-1)]
			}
		}

		interactionType := gofakeit.RandomString(interactionMix)
		var value *float64
		if interactionType == models.InteractionRate {
			v := float64(gofakeit.Number(1, 5))
			value = &v
		}

		if err := s.store.Interactions.Upsert(ctx, &models.Interaction{
			UserID:           user.ID,
			PostID:           post.ID,
			InteractionType:  interactionType,
			InteractionValue: value,
			Timestamp:        gofakeit.DateRange(post.CreatedAt, now).UTC(),
		}); err != nil {
			return err
		}
		written++
	}

	logger.Log.Info("Created seed interactions", zap.Int("count", written))
	return nil
}

// encodeTags varies the stored representation the way upstream data does:
// JSON arrays, comma lists and JSON-encoded strings.
func encodeTags(tags []string, i int) (datatypes.JSON, error) {
	var v interface{} = tags
	switch i % 3 {
	case 1:
		v = strings.Join(tags, ", ")
	case 2:
		inner, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		v = string(inner)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func averageRating(count int) float64 {
	if count == 0 {
		return 0
	}
	return gofakeit.Float64Range(2.5, 5)
}

func pickDistinct(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	picked := make(map[string]bool, n)
	for len(out) < n {
		v := gofakeit.RandomString(pool)
		if !picked[v] {
			picked[v] = true
			out = append(out, v)
		}
	}
	return out
}
