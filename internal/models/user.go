package models

import (
	"strings"
	"time"
)

// UserPreferences is the optional profile a user can set explicitly.
type UserPreferences struct {
	Categories   []string `json:"categories,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Mood         string   `json:"mood,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
}

// PrefersCategory reports whether name is one of the preferred categories (case-insensitive).
func (p *UserPreferences) PrefersCategory(name string) bool {
	if p == nil || name == "" {
		return false
	}
	for _, c := range p.Categories {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return true
		}
	}
	return false
}

// User is created lazily the first time a username is seen and never deleted.
type User struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Username    string           `gorm:"uniqueIndex;not null" json:"username"`
	Preferences *UserPreferences `gorm:"type:jsonb;serializer:json" json:"preferences,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
