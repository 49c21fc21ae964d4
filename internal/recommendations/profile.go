package recommendations

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
)

// profileWeights is the per-type contribution of an interaction to the tag
// profile. Types not listed contribute nothing.
var profileWeights = map[string]float64{
	models.InteractionView:     0.2,
	models.InteractionLike:     1.0,
	models.InteractionBookmark: 1.2,
	models.InteractionRate:     1.5,
}

// InteractionProfileWeight returns the tag-profile weight of one interaction.
// Ratings are scaled by v/5 on a 5-point scale and v/100 otherwise.
func InteractionProfileWeight(interactionType string, value *float64) float64 {
	w := profileWeights[strings.ToLower(interactionType)]
	if w == 0 {
		return 0
	}
	if strings.EqualFold(interactionType, models.InteractionRate) && value != nil {
		v := *value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if v <= 5 {
			w *= v / 5
		} else {
			w *= v / 100
		}
	}
	return w
}

// TagProfileFromInteractions accumulates interaction weights onto the tags of
// the interacted posts. Interactions without a loaded Post are skipped.
func TagProfileFromInteractions(interactions []models.Interaction) map[string]float64 {
	profile := make(map[string]float64)
	for i := range interactions {
		in := &interactions[i]
		if in.Post == nil {
			continue
		}
		w := InteractionProfileWeight(in.InteractionType, in.InteractionValue)
		if w == 0 {
			continue
		}
		for tag := range NormalizeTags(in.Post.Tags) {
			profile[tag] += w
		}
	}
	return profile
}

// CategoryCount is how often a user interacted with a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// EngagementPatterns summarizes how a user engages.
type EngagementPatterns struct {
	Counts          map[string]int  `json:"interaction_breakdown"`
	Total           int             `json:"total_interactions"`
	EngagementScore float64         `json:"engagement_score"`
	TopCategories   []CategoryCount `json:"top_categories"`
}

const maxTopCategories = 5

// AnalyzeEngagement computes per-type counts, the weighted engagement score
// and the most interacted categories.
func AnalyzeEngagement(interactions []models.Interaction) EngagementPatterns {
	p := EngagementPatterns{Counts: make(map[string]int)}
	categories := make(map[string]int)

	for i := range interactions {
		in := &interactions[i]
		p.Counts[strings.ToLower(in.InteractionType)]++
		p.Total++
		if in.Post != nil {
			if name := in.Post.CategoryLabel(); name != "" {
				categories[name]++
			}
		}
	}

	weighted := p.Counts[models.InteractionLike]*2 +
		p.Counts[models.InteractionShare]*3 +
		p.Counts[models.InteractionBookmark]*2 +
		p.Counts[models.InteractionView]
	total := p.Total
	if total < 1 {
		total = 1
	}
	p.EngagementScore = float64(weighted) / float64(total)

	p.TopCategories = make([]CategoryCount, 0, len(categories))
	for name, n := range categories {
		p.TopCategories = append(p.TopCategories, CategoryCount{Category: name, Count: n})
	}
	sort.Slice(p.TopCategories, func(i, j int) bool {
		a, b := p.TopCategories[i], p.TopCategories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	if len(p.TopCategories) > maxTopCategories {
		p.TopCategories = p.TopCategories[:maxTopCategories]
	}

	return p
}

// ProfileBuilder loads a user's interactions and derives their tag profile.
type ProfileBuilder struct {
	interactions repository.InteractionRepository
}

// NewProfileBuilder creates a profile builder over the interaction store.
func NewProfileBuilder(interactions repository.InteractionRepository) *ProfileBuilder {
	return &ProfileBuilder{interactions: interactions}
}

// BuildTagProfile returns the weighted tag profile for userID. A user with no
// interactions gets an empty profile.
func (b *ProfileBuilder) BuildTagProfile(ctx context.Context, userID uint) (map[string]float64, error) {
	interactions, err := b.interactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return TagProfileFromInteractions(interactions), nil
}

// TopTags returns the n highest-weighted tags, ties broken by name.
func TopTags(profile map[string]float64, n int) []TagWeight {
	out := make([]TagWeight, 0, len(profile))
	for tag, w := range profile {
		out = append(out, TagWeight{Tag: tag, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Tag < out[j].Tag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TagWeight is one entry of a tag profile.
type TagWeight struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
}
