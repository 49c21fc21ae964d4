// Package reelrank provides the reelrank video recommendation service.

// The service entry points live under cmd/; the packages are organized as:

// - internal/handlers: HTTP request handlers for the /api/v1 endpoints
// - internal/recommendations: candidate retrieval, scoring strategies and ranking
// - internal/repository: GORM-backed storage for users, posts, interactions and logs
// - internal/models: data models and database schemas
// - internal/scorer: circuit-broken client for the optional remote model scorer
// - internal/cache: Redis and in-process cache stores
// - internal/kernel: dependency wiring shared by the server and tests
// - internal/middleware: HTTP middleware (rate limiting, tracing, metrics, logging)
// - internal/database: database connection and migrations
// - internal/seed: development data generation

// See the individual package documentation for detailed API reference.
package reelrank
