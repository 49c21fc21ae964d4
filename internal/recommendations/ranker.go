package recommendations

import (
	"sort"

	"github.com/zfogg/reelrank/internal/models"
)

// ScoredPost is a candidate with its final blended score.
type ScoredPost struct {
	Post  models.Post `json:"post"`
	Score float64     `json:"score"`
}

// Rank orders items by score descending then id ascending, and returns the
// requested page together with the total item count. The input is not modified.
// Pages past the end are empty.
func Rank(items []ScoredPost, page, pageSize, maxPageSize int) ([]ScoredPost, int) {
	ranked := SortScored(items)
	total := len(ranked)

	if page < 1 {
		page = 1
	}
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	start := (page - 1) * pageSize
	if start >= total {
		return []ScoredPost{}, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return ranked[start:end], total
}

// SortScored returns a sorted copy of items: score descending, id ascending.
func SortScored(items []ScoredPost) []ScoredPost {
	ranked := make([]ScoredPost, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Post.ID < ranked[j].Post.ID
	})
	return ranked
}

func zipScores(candidates []models.Post, scores []float64) []ScoredPost {
	items := make([]ScoredPost, len(candidates))
	for i := range candidates {
		items[i] = ScoredPost{Post: candidates[i], Score: scores[i]}
	}
	return items
}
