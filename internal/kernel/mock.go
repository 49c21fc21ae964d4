package kernel

import (
	"context"

	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/config"
	"github.com/zfogg/reelrank/internal/database"
	"github.com/zfogg/reelrank/internal/logger"
)

// MockKernel is a kernel designed for testing. It runs on an in-memory
// sqlite database and an in-memory cache store.
type MockKernel struct {
	*Kernel
}

// NewMock creates a bootstrapped test kernel. cfg may be nil for defaults.
func NewMock(cfg *config.Config) (*MockKernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		return nil, err
	}

	k := New().
		WithConfig(cfg).
		WithDB(db).
		WithLogger(logger.Log).
		WithCache(cache.NewMemoryStore())

	// Registered first so it runs last, after the engine drains its log writes.
	k.OnCleanup(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := k.Bootstrap(); err != nil {
		return nil, err
	}
	return &MockKernel{Kernel: k}, nil
}

// Clean cleans up test kernels after tests complete
func (m *MockKernel) Clean(ctx context.Context) error {
	return m.Cleanup(ctx)
}
