package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/reelrank/internal/config"
)

func TestBootstrapRequiresConfigAndDB(t *testing.T) {
	err := New().Bootstrap()
	require.Error(t, err)

	var initErr *InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, []string{"config", "database (DB)"}, initErr.MissingDeps)
	assert.Contains(t, err.Error(), "config, database (DB)")
}

func TestValidateBeforeBootstrap(t *testing.T) {
	err := New().WithConfig(config.Default()).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recommendation engine")
}

func TestMockKernelIsWired(t *testing.T) {
	k, err := NewMock(nil)
	require.NoError(t, err)
	defer k.Clean(context.Background())

	require.NoError(t, k.Validate())
	assert.NotNil(t, k.Store())
	assert.NotNil(t, k.Engine())
	assert.NotNil(t, k.Cache())
	assert.False(t, k.Scorer().Enabled(), "no scorer URL in the default config")
	assert.Nil(t, k.Redis())
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	k := New()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		k.OnCleanup(func(context.Context) error {
			order = append(order, i)
			if i == 1 {
				return errors.New("boom")
			}
			return nil
		})
	}

	err := k.Cleanup(context.Background())
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{2, 1, 0}, order, "a failing function does not stop the rest")

	assert.NoError(t, k.Cleanup(context.Background()), "functions run once")
}
