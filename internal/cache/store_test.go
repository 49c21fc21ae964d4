package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "trending", Key("trending"))
	assert.Equal(t, "trending:music:1:20", Key("trending", "music", "1", "20"))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))
	now = now.Add(24 * time.Hour)
	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, s.Del(ctx, "forever"))
	_, err = s.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "rl", time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	now = now.Add(time.Second)
	n, err := s.Incr(ctx, "rl", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type payload struct {
		IDs []uint `json:"ids"`
	}
	require.NoError(t, SetJSON(ctx, s, "p", payload{IDs: []uint{3, 1}}, time.Minute))

	var out payload
	require.NoError(t, GetJSON(ctx, s, "p", &out))
	assert.Equal(t, []uint{3, 1}, out.IDs)

	assert.ErrorIs(t, GetJSON(ctx, s, "missing", &out), ErrMiss)
}
