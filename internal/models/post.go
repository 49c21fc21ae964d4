package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Category is the classification record reported by ingestion.
type Category struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	Count       int    `json:"count,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Topic groups posts into a project.
type Topic struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Slug        string `json:"slug,omitempty"`
	IsPublic    bool   `json:"is_public"`
	ProjectCode string `json:"project_code,omitempty"`
	PostsCount  int    `json:"posts_count,omitempty"`
	Language    string `json:"language,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	Owner       *Owner `json:"owner,omitempty"`
}

// Owner is the creator of a post as reported upstream.
type Owner struct {
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Name            string `json:"name,omitempty"`
	Username        string `json:"username"`
	PictureURL      string `json:"picture_url,omitempty"`
	UserType        string `json:"user_type,omitempty"`
	HasEVMWallet    bool   `json:"has_evm_wallet"`
	HasSolanaWallet bool   `json:"has_solana_wallet"`
}

// Post is a video item. Counters are externally reported totals; recording an
// interaction never increments them.
type Post struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Title string `gorm:"not null" json:"title"`
	Slug  string `gorm:"uniqueIndex;not null" json:"slug"`

	ViewCount     int     `gorm:"default:0" json:"view_count"`
	UpvoteCount   int     `gorm:"default:0" json:"upvote_count"`
	CommentCount  int     `gorm:"default:0" json:"comment_count"`
	ShareCount    int     `gorm:"default:0" json:"share_count"`
	BookmarkCount int     `gorm:"default:0" json:"bookmark_count"`
	RatingCount   int     `gorm:"default:0" json:"rating_count"`
	AverageRating float64 `gorm:"default:0" json:"average_rating"`

	IsAvailableInPublicFeed bool `gorm:"index:idx_posts_eligible" json:"is_available_in_public_feed"`
	IsLocked                bool `gorm:"index:idx_posts_eligible" json:"is_locked"`

	VideoLink       string `json:"video_link"`
	ThumbnailURL    string `json:"thumbnail_url"`
	GifThumbnailURL string `json:"gif_thumbnail_url"`

	// Tags holds the raw upstream value (array, JSON string or comma list);
	// it is normalized at read time.
	Tags      datatypes.JSON `json:"tags"`
	Owner     *Owner         `gorm:"type:jsonb;serializer:json" json:"owner,omitempty"`
	Category  *Category      `gorm:"type:jsonb;serializer:json" json:"category,omitempty"`
	Topic     *Topic         `gorm:"type:jsonb;serializer:json" json:"topic,omitempty"`
	BaseToken datatypes.JSON `json:"base_token,omitempty"`

	ProjectCode  string `gorm:"index" json:"project_code"`
	CategoryName string `gorm:"index" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave keeps the denormalized filter columns in sync with the typed records.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	p.CategoryName = ""
	if p.Category != nil {
		p.CategoryName = strings.ToLower(strings.TrimSpace(p.Category.Name))
	}
	if p.ProjectCode == "" && p.Topic != nil {
		p.ProjectCode = p.Topic.ProjectCode
	}
	return nil
}

// CategoryLabel returns the category name or "" when uncategorized.
func (p *Post) CategoryLabel() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

// Identifier is the short public handle derived from the slug.
func (p *Post) Identifier() string {
	if len(p.Slug) <= 7 {
		return p.Slug
	}
	return p.Slug[:7]
}
