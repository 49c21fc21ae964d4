package models

import "time"

// Interaction types understood by the scoring pipeline.
const (
	InteractionView     = "view"
	InteractionLike     = "like"
	InteractionBookmark = "bookmark"
	InteractionShare    = "share"
	InteractionRate     = "rate"
	InteractionComment  = "comment"
	InteractionInspire  = "inspire"
)

// InteractionTypes lists every type accepted by RecordInteraction.
var InteractionTypes = []string{
	InteractionView,
	InteractionLike,
	InteractionBookmark,
	InteractionShare,
	InteractionRate,
	InteractionComment,
	InteractionInspire,
}

// IsValidInteractionType reports whether t is a known interaction type.
func IsValidInteractionType(t string) bool {
	for _, known := range InteractionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Interaction is a single user action on a post. (user_id, post_id, interaction_type)
// is unique: repeating an action upserts the existing row.
type Interaction struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	UserID          uint   `gorm:"not null;uniqueIndex:idx_interactions_user_post_type,priority:1;index:idx_interactions_user" json:"user_id"`
	PostID          uint   `gorm:"not null;uniqueIndex:idx_interactions_user_post_type,priority:2;index:idx_interactions_post" json:"post_id"`
	InteractionType string `gorm:"not null;size:32;uniqueIndex:idx_interactions_user_post_type,priority:3" json:"interaction_type"`

	// InteractionValue is the rating for "rate"; other types may carry an
	// auxiliary magnitude such as watch time.
	InteractionValue *float64  `json:"interaction_value,omitempty"`
	Timestamp        time.Time `gorm:"not null;index" json:"timestamp"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
	Post *Post `gorm:"foreignKey:PostID" json:"post,omitempty"`
}
