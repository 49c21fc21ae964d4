package recommendations

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/metrics"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// collaborativeWeights is the implicit rating each interaction type adds to
// the user x item matrix. Unlisted types weigh 1.
var collaborativeWeights = map[string]float64{
	models.InteractionView:     1.0,
	models.InteractionLike:     2.0,
	models.InteractionShare:    3.0,
	models.InteractionBookmark: 2.5,
	models.InteractionRate:     2.0,
	models.InteractionComment:  1.5,
}

// CollaborativeRating is the matrix contribution of one interaction.
func CollaborativeRating(interactionType string, value *float64) float64 {
	w, ok := collaborativeWeights[strings.ToLower(interactionType)]
	if !ok {
		w = 1.0
	}
	if value != nil && *value > 0 && !math.IsInf(*value, 0) {
		w *= *value
	}
	return w
}

// cfSnapshot is an immutable user x item matrix. It is replaced wholesale on
// rebuild and never mutated after publication.
type cfSnapshot struct {
	ratings map[uint]map[uint]float64
	norms   map[uint]float64
	users   []uint
	builtAt time.Time
}

func newCFSnapshot(interactions []models.Interaction, builtAt time.Time) *cfSnapshot {
	s := &cfSnapshot{
		ratings: make(map[uint]map[uint]float64),
		norms:   make(map[uint]float64),
		builtAt: builtAt,
	}
	for i := range interactions {
		in := &interactions[i]
		row, ok := s.ratings[in.UserID]
		if !ok {
			row = make(map[uint]float64)
			s.ratings[in.UserID] = row
		}
		row[in.PostID] += CollaborativeRating(in.InteractionType, in.InteractionValue)
	}

	s.users = make([]uint, 0, len(s.ratings))
	for userID, row := range s.ratings {
		var sum float64
		for _, r := range row {
			sum += r * r
		}
		s.norms[userID] = math.Sqrt(sum)
		s.users = append(s.users, userID)
	}
	sort.Slice(s.users, func(i, j int) bool { return s.users[i] < s.users[j] })
	return s
}

type neighbor struct {
	userID     uint
	similarity float64
}

// neighbors returns up to k users most similar to userID with positive
// cosine similarity, ordered by similarity then user id.
func (s *cfSnapshot) neighbors(userID uint, k int) []neighbor {
	target := s.ratings[userID]
	targetNorm := s.norms[userID]
	if len(target) == 0 || targetNorm == 0 {
		return nil
	}

	var out []neighbor
	for _, other := range s.users {
		if other == userID {
			continue
		}
		otherNorm := s.norms[other]
		if otherNorm == 0 {
			continue
		}
		row := s.ratings[other]
		small, large := target, row
		if len(small) > len(large) {
			small, large = large, small
		}
		var dot float64
		for item, r := range small {
			dot += r * large[item]
		}
		if dot <= 0 {
			continue
		}
		out = append(out, neighbor{userID: other, similarity: dot / (targetNorm * otherNorm)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].similarity != out[j].similarity {
			return out[i].similarity > out[j].similarity
		}
		return out[i].userID < out[j].userID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// predict scores each item by the similarity-weighted ratings of the
// neighbours that rated it. The bool is false when the matrix cannot serve
// this user.
func (s *cfSnapshot) predict(userID uint, items []uint, k int) ([]float64, bool) {
	if len(s.ratings) < 2 {
		return nil, false
	}
	if _, ok := s.ratings[userID]; !ok {
		return nil, false
	}

	nbrs := s.neighbors(userID, k)
	scores := make([]float64, len(items))
	for i, item := range items {
		var num, den float64
		for _, n := range nbrs {
			r := s.ratings[n.userID][item]
			if r <= 0 {
				continue
			}
			num += n.similarity * r
			den += math.Abs(n.similarity)
		}
		if den > 0 {
			scores[i] = num / den
		}
	}
	return scores, true
}

// CollaborativeModel serves user-based KNN predictions from a periodically
// rebuilt snapshot. A stale snapshot keeps serving while one background
// rebuild runs.
type CollaborativeModel struct {
	interactions repository.InteractionRepository
	ttl          time.Duration
	neighbors    int
	buildTimeout time.Duration

	snapshot   atomic.Pointer[cfSnapshot]
	group      singleflight.Group
	refreshing atomic.Bool
	now        func() time.Time
}

// NewCollaborativeModel creates a model that rebuilds after ttl and uses up to
// neighbors similar users per prediction.
func NewCollaborativeModel(interactions repository.InteractionRepository, ttl time.Duration, neighbors int) *CollaborativeModel {
	if neighbors <= 0 {
		neighbors = 50
	}
	return &CollaborativeModel{
		interactions: interactions,
		ttl:          ttl,
		neighbors:    neighbors,
		buildTimeout: 30 * time.Second,
		now:          time.Now,
	}
}

// Predict returns one score per post id. ok is false when the matrix has
// fewer than two users or does not contain userID.
func (m *CollaborativeModel) Predict(ctx context.Context, userID uint, postIDs []uint) ([]float64, bool, error) {
	snap, err := m.current(ctx)
	if err != nil {
		return nil, false, err
	}
	scores, ok := snap.predict(userID, postIDs, m.neighbors)
	return scores, ok, nil
}

// Rebuild forces a synchronous rebuild, sharing any rebuild already in flight.
func (m *CollaborativeModel) Rebuild(ctx context.Context) error {
	_, err := m.rebuild(ctx)
	return err
}

// Users returns how many users the current snapshot holds, 0 before the first build.
func (m *CollaborativeModel) Users() int {
	if snap := m.snapshot.Load(); snap != nil {
		return len(snap.users)
	}
	return 0
}

func (m *CollaborativeModel) current(ctx context.Context) (*cfSnapshot, error) {
	snap := m.snapshot.Load()
	if snap == nil {
		return m.rebuild(ctx)
	}
	if m.ttl > 0 && m.now().Sub(snap.builtAt) > m.ttl && m.refreshing.CompareAndSwap(false, true) {
		go func() {
			defer m.refreshing.Store(false)
			bctx, cancel := context.WithTimeout(context.Background(), m.buildTimeout)
			defer cancel()
			if _, err := m.rebuild(bctx); err != nil {
				logger.WarnWithFields("Background collaborative rebuild failed", err)
			}
		}()
	}
	return snap, nil
}

func (m *CollaborativeModel) rebuild(ctx context.Context) (*cfSnapshot, error) {
	v, err, _ := m.group.Do("collaborative", func() (interface{}, error) {
		start := time.Now()
		interactions, err := m.interactions.ListSince(ctx, time.Time{}, 0)
		if err != nil {
			metrics.Get().CollaborativeRebuildsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		snap := newCFSnapshot(interactions, m.now())
		m.snapshot.Store(snap)

		mt := metrics.Get()
		mt.CollaborativeRebuildsTotal.WithLabelValues("success").Inc()
		mt.CollaborativeRebuildDuration.Observe(time.Since(start).Seconds())
		mt.CollaborativeMatrixUsers.Set(float64(len(snap.users)))

		logger.Log.Debug("Collaborative matrix rebuilt",
			zap.Int("users", len(snap.users)),
			zap.Int("interactions", len(interactions)),
			logger.WithDuration(time.Since(start)),
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cfSnapshot), nil
}
