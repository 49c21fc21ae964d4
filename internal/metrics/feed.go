package metrics

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// FeedMetric describes one served recommendation response.
type FeedMetric struct {
	Algorithm   string
	ResultCount int
	Duration    time.Duration
	CacheHit    bool
	Fallback    bool
}

// FeedStats keeps in-process counters for recommendation responses, next to
// the Prometheus series.
type FeedStats struct {
	RequestCount  int64
	FallbackCount int64
	CacheHits     int64
	TotalResults  int64

	// milliseconds
	TotalFeedTime int64
	MaxFeedTime   int64

	mu           sync.RWMutex
	byAlgorithm  map[string]int64
	feedTimings  []int64
	maxTimings   int
	timingCursor int
}

// NewFeedStats creates an empty tracker.
func NewFeedStats() *FeedStats {
	return &FeedStats{
		byAlgorithm: make(map[string]int64),
		feedTimings: make([]int64, 0, 1024),
		maxTimings:  1024,
	}
}

// RecordFeed records a served response in both the in-process summary and Prometheus.
func (fs *FeedStats) RecordFeed(metric FeedMetric) {
	atomic.AddInt64(&fs.RequestCount, 1)
	atomic.AddInt64(&fs.TotalResults, int64(metric.ResultCount))
	if metric.Fallback {
		atomic.AddInt64(&fs.FallbackCount, 1)
	}
	if metric.CacheHit {
		atomic.AddInt64(&fs.CacheHits, 1)
	}

	durationMs := metric.Duration.Milliseconds()
	atomic.AddInt64(&fs.TotalFeedTime, durationMs)
	for {
		old := atomic.LoadInt64(&fs.MaxFeedTime)
		if durationMs <= old || atomic.CompareAndSwapInt64(&fs.MaxFeedTime, old, durationMs) {
			break
		}
	}

	fs.mu.Lock()
	fs.byAlgorithm[metric.Algorithm]++
	// Ring buffer of recent timings for percentiles.
	if len(fs.feedTimings) < fs.maxTimings {
		fs.feedTimings = append(fs.feedTimings, durationMs)
	} else {
		fs.feedTimings[fs.timingCursor] = durationMs
		fs.timingCursor = (fs.timingCursor + 1) % fs.maxTimings
	}
	fs.mu.Unlock()

	m := Get()
	m.FeedGenerationTime.WithLabelValues(metric.Algorithm).Observe(metric.Duration.Seconds())
	m.RecommendationsServed.WithLabelValues(metric.Algorithm).Add(float64(metric.ResultCount))
}

// GetStats returns current metrics as a map
func (fs *FeedStats) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&fs.RequestCount)
	totalTime := atomic.LoadInt64(&fs.TotalFeedTime)

	var avgTime, fallbackRate float64
	if requests > 0 {
		avgTime = float64(totalTime) / float64(requests)
		fallbackRate = float64(atomic.LoadInt64(&fs.FallbackCount)) / float64(requests) * 100
	}

	fs.mu.RLock()
	byAlgorithm := make(map[string]int64, len(fs.byAlgorithm))
	for k, v := range fs.byAlgorithm {
		byAlgorithm[k] = v
	}
	p50, p95, p99 := percentiles(fs.feedTimings)
	fs.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":   requests,
		"by_algorithm":     byAlgorithm,
		"fallback_count":   atomic.LoadInt64(&fs.FallbackCount),
		"fallback_rate":    fallbackRate,
		"cache_hits":       atomic.LoadInt64(&fs.CacheHits),
		"total_results":    atomic.LoadInt64(&fs.TotalResults),
		"avg_feed_time_ms": avgTime,
		"max_feed_time_ms": atomic.LoadInt64(&fs.MaxFeedTime),
		"p50_feed_time_ms": p50,
		"p95_feed_time_ms": p95,
		"p99_feed_time_ms": p99,
		"timestamp":        time.Now().Unix(),
	}
}

// AlgorithmCount returns how many responses used algorithm.
func (fs *FeedStats) AlgorithmCount(algorithm string) int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.byAlgorithm[algorithm]
}

// percentiles expects the caller to hold a read lock on the source slice.
func percentiles(src []int64) (p50, p95, p99 int64) {
	if len(src) == 0 {
		return 0, 0, 0
	}
	timings := make([]int64, len(src))
	copy(timings, src)
	sort.Slice(timings, func(i, j int) bool { return timings[i] < timings[j] })

	n := len(timings)
	return timings[(n*50)/100], timings[(n*95)/100], timings[(n*99)/100]
}

// Reset clears all metrics
func (fs *FeedStats) Reset() {
	atomic.StoreInt64(&fs.RequestCount, 0)
	atomic.StoreInt64(&fs.FallbackCount, 0)
	atomic.StoreInt64(&fs.CacheHits, 0)
	atomic.StoreInt64(&fs.TotalResults, 0)
	atomic.StoreInt64(&fs.TotalFeedTime, 0)
	atomic.StoreInt64(&fs.MaxFeedTime, 0)

	fs.mu.Lock()
	fs.byAlgorithm = make(map[string]int64)
	fs.feedTimings = fs.feedTimings[:0]
	fs.timingCursor = 0
	fs.mu.Unlock()
}

// RecordStrategy counts a strategy run by availability.
func RecordStrategy(strategy string, available bool) {
	Get().StrategyResultsTotal.WithLabelValues(strategy, strconv.FormatBool(available)).Inc()
}

// RecordFallback counts a feed served from the trending fallback.
func RecordFallback(reason string) {
	Get().FeedFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordCacheLookup counts a hit or miss on a named cache.
func RecordCacheLookup(cacheName string, hit bool) {
	m := Get()
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheName).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheLookups counts a batch lookup's hits and misses at once.
func RecordCacheLookups(cacheName string, hits, misses int) {
	m := Get()
	if hits > 0 {
		m.CacheHitsTotal.WithLabelValues(cacheName).Add(float64(hits))
	}
	if misses > 0 {
		m.CacheMissesTotal.WithLabelValues(cacheName).Add(float64(misses))
	}
}

// RecordInteraction counts an interaction write.
func RecordInteraction(interactionType, status string) {
	Get().InteractionsRecorded.WithLabelValues(interactionType, status).Inc()
}
