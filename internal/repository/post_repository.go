package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/zfogg/reelrank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostQuery narrows the eligible post set. Zero values mean "no constraint".
type PostQuery struct {
	Category     string
	ProjectCode  string
	TagContains  string
	CreatedAfter time.Time
	ExcludeIDs   []uint
	Limit        int
}

// PostRepository handles read access to posts and the ingestion upsert.
type PostRepository interface {
	GetPost(ctx context.Context, postID uint) (*models.Post, error)
	GetPosts(ctx context.Context, postIDs []uint) ([]models.Post, error)

	// ListEligible returns public, unlocked posts matching q, newest first.
	ListEligible(ctx context.Context, q PostQuery) ([]models.Post, error)

	// UpsertPosts inserts posts or refreshes counters/metadata keyed on slug.
	UpsertPosts(ctx context.Context, posts []models.Post) error

	GetTotalPostCount(ctx context.Context) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetPosts(ctx context.Context, postIDs []uint) ([]models.Post, error) {
	if len(postIDs) == 0 {
		return []models.Post{}, nil
	}
	var posts []models.Post
	err := r.db.WithContext(ctx).Where("id IN ?", postIDs).Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListEligible(ctx context.Context, q PostQuery) ([]models.Post, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("is_available_in_public_feed = ? AND is_locked = ?", true, false)

	if c := strings.TrimSpace(q.Category); c != "" {
		query = query.Where("category_name = ?", strings.ToLower(c))
	}
	if pc := strings.TrimSpace(q.ProjectCode); pc != "" {
		query = query.Where("LOWER(project_code) = ?", strings.ToLower(pc))
	}
	if tag := strings.TrimSpace(q.TagContains); tag != "" {
		// Coarse pre-filter; callers check exact tag membership after normalizing.
		patterns := tagLikePatterns(tag)
		clauses := make([]string, len(patterns))
		args := make([]interface{}, len(patterns))
		for i, p := range patterns {
			clauses[i] = "LOWER(CAST(tags AS TEXT)) LIKE ? ESCAPE '!'"
			args[i] = p
		}
		query = query.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	if !q.CreatedAfter.IsZero() {
		query = query.Where("created_at >= ?", q.CreatedAfter)
	}
	if len(q.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var posts []models.Post
	err := query.Order("created_at DESC").Order("id DESC").Find(&posts).Error
	return posts, err
}

func (r *postRepository) UpsertPosts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title",
				"view_count", "upvote_count", "comment_count", "share_count",
				"bookmark_count", "rating_count", "average_rating",
				"is_available_in_public_feed", "is_locked",
				"video_link", "thumbnail_url", "gif_thumbnail_url",
				"tags", "owner", "category", "topic", "base_token",
				"project_code", "category_name", "updated_at",
			}),
		}).
		CreateInBatches(posts, 200).Error
}

func (r *postRepository) GetTotalPostCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error
	return count, err
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// tagLikePatterns lists the spellings a tag may have inside the raw tags
// column: plain, JSON with HTML escapes (`\u0026`), JSON with every non-ASCII
// rune escaped, and each escaped form nested inside a JSON-encoded string.
func tagLikePatterns(tag string) []string {
	tag = strings.ToLower(tag)
	forms := []string{tag, jsonEscaped(tag), asciiEscaped(jsonEscaped(tag))}
	for _, f := range forms[1:] {
		forms = append(forms, strings.ReplaceAll(f, `\`, `\\`))
	}

	seen := make(map[string]bool, len(forms))
	patterns := make([]string, 0, len(forms))
	for _, f := range forms {
		if seen[f] {
			continue
		}
		seen[f] = true
		patterns = append(patterns, "%"+likeEscaper.Replace(f)+"%")
	}
	return patterns
}

func jsonEscaped(s string) string {
	raw, err := json.Marshal(s)
	if err != nil || len(raw) < 2 {
		return s
	}
	return string(raw[1 : len(raw)-1])
}

func asciiEscaped(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return b.String()
}
