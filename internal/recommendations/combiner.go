package recommendations

import (
	"math"
	"sort"

	"github.com/zfogg/reelrank/internal/models"
)

// Combiner blends strategy results linearly. Unavailable strategies
// contribute 0 and the remaining weights are not re-normalized.
type Combiner struct {
	Weights       map[string]float64
	PenaltyWeight float64
}

// PersonalizedCombiner is the blend used for users with enough history.
func PersonalizedCombiner() Combiner {
	return Combiner{
		Weights: map[string]float64{
			StrategyContent:       1.0,
			StrategyPopularity:    0.3,
			StrategyPreference:    1.0,
			StrategyCollaborative: 0.3,
			StrategyEmbedding:     0.2,
			StrategyModel:         0.5,
		},
		PenaltyWeight: 0.5,
	}
}

// ColdStartCombiner ranks by popularity and freshness only.
func ColdStartCombiner() Combiner {
	return Combiner{
		Weights: map[string]float64{
			StrategyPopularity: 1.0,
			StrategyRecency:    1.0,
		},
	}
}

// TrendingCombiner ranks by engagement velocity only.
func TrendingCombiner() Combiner {
	return Combiner{
		Weights: map[string]float64{
			StrategyTrending: 1.0,
		},
	}
}

// StrategyNames returns the weighted strategy names in sorted order.
func (c Combiner) StrategyNames() []string {
	names := make([]string, 0, len(c.Weights))
	for name := range c.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Combine returns one blended score per candidate. seen maps post id to the
// number of prior interactions and is only read when PenaltyWeight is set.
func (c Combiner) Combine(candidates []models.Post, results map[string]Result, seen map[uint]int) []float64 {
	scores := make([]float64, len(candidates))

	for _, name := range c.StrategyNames() {
		w := c.Weights[name]
		res, ok := results[name]
		if !ok || !res.Available || w == 0 || len(res.Scores) != len(candidates) {
			continue
		}
		for i, s := range res.Scores {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				continue
			}
			scores[i] += w * s
		}
	}

	if c.PenaltyWeight != 0 && len(seen) > 0 {
		for i := range candidates {
			scores[i] -= c.PenaltyWeight * float64(seen[candidates[i].ID])
		}
	}

	return scores
}

// Contributed returns the sorted names of weighted strategies that were available.
func (c Combiner) Contributed(results map[string]Result) []string {
	var names []string
	for _, name := range c.StrategyNames() {
		if res, ok := results[name]; ok && res.Available && c.Weights[name] != 0 {
			names = append(names, name)
		}
	}
	return names
}
