package recommendations

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/zfogg/reelrank/internal/models"
)

// DefaultEmbeddingDim is the size of the hashed feature space.
const DefaultEmbeddingDim = 128

const categoryFeaturePrefix = "category:"

// PostVector hashes a post's normalized tags and category into a dim-sized,
// L2-normalized vector. A post with no features yields the zero vector.
func PostVector(post *models.Post, dim int) []float64 {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	vec := make([]float64, dim)
	if post == nil {
		return vec
	}

	for _, tag := range NormalizeTags(post.Tags).Sorted() {
		vec[featureIndex(tag, dim)] += 1.0
	}
	if name := strings.ToLower(strings.TrimSpace(post.CategoryLabel())); name != "" {
		vec[featureIndex(categoryFeaturePrefix+name, dim)] += 1.0
	}

	return l2Normalize(vec)
}

// UserVector projects a tag profile into the same hashed space as PostVector.
func UserVector(profile map[string]float64, dim int) []float64 {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	vec := make([]float64, dim)

	// Sorted accumulation keeps the float sums bit-identical between runs.
	tags := make([]string, 0, len(profile))
	for tag := range profile {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		w := profile[tag]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		vec[featureIndex(tag, dim)] += w
	}

	return l2Normalize(vec)
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when
// either is zero or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsZeroVector reports whether every component is 0.
func IsZeroVector(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func featureIndex(feature string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum32() % uint32(dim))
}

func l2Normalize(vec []float64) []float64 {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
