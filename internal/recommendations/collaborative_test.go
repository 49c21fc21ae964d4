package recommendations

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/reelrank/internal/models"
)

func cfInteraction(userID, postID uint, interactionType string) models.Interaction {
	return models.Interaction{UserID: userID, PostID: postID, InteractionType: interactionType}
}

func TestCollaborativeRating(t *testing.T) {
	assert.Equal(t, 3.0, CollaborativeRating(models.InteractionShare, nil))
	assert.Equal(t, 1.0, CollaborativeRating("inspire", nil))
	assert.Equal(t, 8.0, CollaborativeRating(models.InteractionRate, floatPtr(4)))
	assert.Equal(t, 2.0, CollaborativeRating(models.InteractionLike, floatPtr(-1)))
}

func TestSnapshotNeighborsAndPredict(t *testing.T) {
	snap := newCFSnapshot([]models.Interaction{
		cfInteraction(1, 10, models.InteractionLike),
		cfInteraction(1, 11, models.InteractionLike),
		cfInteraction(2, 10, models.InteractionLike),
		cfInteraction(2, 12, models.InteractionShare),
		cfInteraction(3, 13, models.InteractionView),
	}, time.Now())

	nbrs := snap.neighbors(1, 50)
	require.Len(t, nbrs, 1, "users without overlap are not neighbours")
	assert.Equal(t, uint(2), nbrs[0].userID)
	assert.InDelta(t, 4/(math.Sqrt(8)*math.Sqrt(13)), nbrs[0].similarity, 1e-9)

	scores, ok := snap.predict(1, []uint{12, 13, 10}, 50)
	require.True(t, ok)
	assert.InDelta(t, 3.0, scores[0], 1e-9)
	assert.Zero(t, scores[1], "no neighbour rated the item")
	assert.InDelta(t, 2.0, scores[2], 1e-9)

	_, ok = snap.predict(99, []uint{10}, 50)
	assert.False(t, ok, "user absent from the matrix")
}

func TestSnapshotNeedsTwoUsers(t *testing.T) {
	snap := newCFSnapshot([]models.Interaction{cfInteraction(1, 10, models.InteractionLike)}, time.Now())
	_, ok := snap.predict(1, []uint{10}, 50)
	assert.False(t, ok)
}

func TestSnapshotNeighborLimit(t *testing.T) {
	var interactions []models.Interaction
	for u := uint(1); u <= 6; u++ {
		interactions = append(interactions, cfInteraction(u, 10, models.InteractionLike))
	}
	snap := newCFSnapshot(interactions, time.Now())

	nbrs := snap.neighbors(1, 3)
	require.Len(t, nbrs, 3)
	assert.Equal(t, []uint{2, 3, 4}, []uint{nbrs[0].userID, nbrs[1].userID, nbrs[2].userID})
}

func TestCollaborativeModelRebuildsFromStore(t *testing.T) {
	ctx := context.Background()
	db, store := newTestStore(t)
	p1 := seedPost(t, db, models.Post{Title: "one"})
	p2 := seedPost(t, db, models.Post{Title: "two"})

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	require.NoError(t, store.Interactions.Upsert(ctx, &models.Interaction{UserID: alice.ID, PostID: p1.ID, InteractionType: "like"}))

	model := NewCollaborativeModel(store.Interactions, time.Hour, 10)
	_, ok, err := model.Predict(ctx, alice.ID, []uint{p2.ID})
	require.NoError(t, err)
	assert.False(t, ok, "a single user cannot be served")
	assert.Equal(t, 1, model.Users())

	require.NoError(t, store.Interactions.Upsert(ctx, &models.Interaction{UserID: bob.ID, PostID: p1.ID, InteractionType: "like"}))
	require.NoError(t, store.Interactions.Upsert(ctx, &models.Interaction{UserID: bob.ID, PostID: p2.ID, InteractionType: "share"}))

	// The snapshot is still fresh, so new interactions are not visible yet.
	_, ok, err = model.Predict(ctx, alice.ID, []uint{p2.ID})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, model.Rebuild(ctx))
	assert.Equal(t, 2, model.Users())

	scores, ok, err := model.Predict(ctx, alice.ID, []uint{p2.ID})
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 3.0, scores[0], 1e-9)
}

func TestCollaborativeModelServesStaleSnapshotWhileRefreshing(t *testing.T) {
	ctx := context.Background()
	db, store := newTestStore(t)
	p1 := seedPost(t, db, models.Post{Title: "one"})
	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")
	require.NoError(t, store.Interactions.Upsert(ctx, &models.Interaction{UserID: alice.ID, PostID: p1.ID, InteractionType: "view"}))
	require.NoError(t, store.Interactions.Upsert(ctx, &models.Interaction{UserID: bob.ID, PostID: p1.ID, InteractionType: "view"}))

	base := time.Now()
	clock := base
	model := NewCollaborativeModel(store.Interactions, time.Minute, 10)
	model.now = func() time.Time { return clock }
	require.NoError(t, model.Rebuild(ctx))
	first := model.snapshot.Load()

	clock = base.Add(2 * time.Minute)
	_, ok, err := model.Predict(ctx, alice.ID, []uint{p1.ID})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		return model.snapshot.Load() != first && !model.refreshing.Load()
	}, 2*time.Second, 10*time.Millisecond)
}
