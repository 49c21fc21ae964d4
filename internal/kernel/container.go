// Package kernel provides dependency injection management for the reelrank service.
// It consolidates all services and provides type-safe access to dependencies.
package kernel

import (
	"context"
	"sync"

	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/config"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/recommendations"
	"github.com/zfogg/reelrank/internal/repository"
	"github.com/zfogg/reelrank/internal/scorer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds all application dependencies and provides type-safe access.
type Kernel struct {
	// Core infrastructure
	config *config.Config
	db     *gorm.DB
	logger *zap.Logger
	redis  *cache.RedisClient
	cache  cache.Store

	// Domain services
	store  *repository.Store
	scorer *scorer.Client
	engine *recommendations.Engine

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty kernel.
// Services should be registered using Set* methods or built with Bootstrap.
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// Bootstrap wires the store, scorer client and engine from the registered
// config, database and optional Redis client.
func (c *Kernel) Bootstrap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	missing := []string{}
	if c.config == nil {
		missing = append(missing, "config")
	}
	if c.db == nil {
		missing = append(missing, "database (DB)")
	}
	if len(missing) > 0 {
		return NewInitializationError("Cannot bootstrap kernel", missing)
	}

	c.store = repository.NewStore(c.db)
	c.scorer = scorer.New(scorer.Config{
		BaseURL: c.config.ScorerURL,
		Timeout: c.config.ScorerTimeout,
	})

	opts := []recommendations.Option{recommendations.WithModelScorer(c.scorer)}
	if c.cache == nil && c.redis != nil {
		c.cache = c.redis
	}
	if c.cache != nil {
		opts = append(opts, recommendations.WithCache(c.cache))
	}
	c.engine = recommendations.NewEngine(c.config, c.store, opts...)

	// Drain pending recommendation log writes before the database closes.
	engine := c.engine
	c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error {
		engine.Wait()
		return nil
	})
	return nil
}

// ============================================================================
// CORE INFRASTRUCTURE SETTERS/GETTERS
// ============================================================================

// SetConfig registers the service configuration
func (c *Kernel) SetConfig(cfg *config.Config) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	return c
}

// Config returns the service configuration
func (c *Kernel) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// SetDB registers the database connection
func (c *Kernel) SetDB(db *gorm.DB) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// DB returns the database connection
func (c *Kernel) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetLogger registers the logger
func (c *Kernel) SetLogger(l *zap.Logger) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

// Logger returns the logger instance
func (c *Kernel) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggerLocked()
}

func (c *Kernel) loggerLocked() *zap.Logger {
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// SetRedis registers the Redis client. It also becomes the engine cache
// unless another cache store was set.
func (c *Kernel) SetRedis(client *cache.RedisClient) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redis = client
	return c
}

// Redis returns the Redis client, or nil when Redis is not configured.
func (c *Kernel) Redis() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redis
}

// SetCache registers the cache store used by the engine and rate limiter
func (c *Kernel) SetCache(store cache.Store) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = store
	return c
}

// Cache returns the cache store, or nil when caching is disabled
func (c *Kernel) Cache() cache.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// ============================================================================
// DOMAIN SERVICE GETTERS
// ============================================================================

// Store returns the repository store
func (c *Kernel) Store() *repository.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// Scorer returns the remote model scorer client
func (c *Kernel) Scorer() *scorer.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scorer
}

// SetEngine registers a recommendation engine built elsewhere, e.g. in tests
func (c *Kernel) SetEngine(engine *recommendations.Engine) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = engine
	return c
}

// Engine returns the recommendation engine
func (c *Kernel) Engine() *recommendations.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// ============================================================================
// LIFECYCLE MANAGEMENT
// ============================================================================

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first cleaned up).
func (c *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup performs graceful shutdown of all registered services.
// Failures are logged and the remaining functions still run; the first error is returned.
func (c *Kernel) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](ctx); err != nil {
			c.loggerLocked().Error("Cleanup function failed",
				zap.Int("index", i),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.cleanupFuncs = c.cleanupFuncs[:0]

	return firstErr
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks that all required dependencies are registered.
// This should be called after Bootstrap and before starting the server.
func (c *Kernel) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}
	if c.config == nil {
		missingDeps = append(missingDeps, "config")
	}
	if c.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if c.store == nil {
		missingDeps = append(missingDeps, "repository store")
	}
	if c.engine == nil {
		missingDeps = append(missingDeps, "recommendation engine")
	}
	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	if c.cache == nil {
		c.loggerLocked().Info("Running without a shared cache; trending results and embeddings use the database only")
	}
	if !c.scorer.Enabled() {
		c.loggerLocked().Info("Remote model scorer not configured")
	}
	return nil
}

// ============================================================================
// FLUENT API SUPPORT
// ============================================================================

// WithConfig is a fluent setter for configuration
func (c *Kernel) WithConfig(cfg *config.Config) *Kernel {
	return c.SetConfig(cfg)
}

// WithDB is a fluent setter for database
func (c *Kernel) WithDB(db *gorm.DB) *Kernel {
	return c.SetDB(db)
}

// WithLogger is a fluent setter for logger
func (c *Kernel) WithLogger(l *zap.Logger) *Kernel {
	return c.SetLogger(l)
}

// WithRedis is a fluent setter for the Redis client
func (c *Kernel) WithRedis(client *cache.RedisClient) *Kernel {
	return c.SetRedis(client)
}

// WithCache is a fluent setter for the cache store
func (c *Kernel) WithCache(store cache.Store) *Kernel {
	return c.SetCache(store)
}
