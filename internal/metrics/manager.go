package metrics

import (
	"sync"
)

// Manager manages the in-process metric summaries served on /health
type Manager struct {
	Feed *FeedStats
	mu   sync.RWMutex
}

// Global metrics manager instance
var globalManager *Manager
var managerOnce sync.Once

// GetManager returns the global metrics manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			Feed: NewFeedStats(),
		}
	})
	return globalManager
}

// GetAllMetrics returns all metrics as a map
func (m *Manager) GetAllMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feed": m.Feed.GetStats(),
	}
}
