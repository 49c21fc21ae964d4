package recommendations

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
	"golang.org/x/sync/errgroup"
)

const (
	profileTopTags  = 20
	statsTopN       = 5
	defaultLogLimit = 10
	maxLogLimit     = 50
)

// UserProfile is the engagement summary shown for a user.
type UserProfile struct {
	User                  *models.User            `json:"user"`
	Engagement            EngagementPatterns      `json:"engagement"`
	TagProfile            []TagWeight             `json:"tag_profile"`
	Preferences           *models.UserPreferences `json:"preferences,omitempty"`
	RecommendationsServed int64                   `json:"recommendations_served"`
}

// UserProfile loads the stats of an existing user.
func (e *Engine) UserProfile(ctx context.Context, username string) (*UserProfile, error) {
	user, err := e.store.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	var (
		interactions []models.Interaction
		served       int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		interactions, err = e.store.Interactions.ListByUser(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		served, err = e.store.Logs.CountByUser(gctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &UserProfile{
		User:                  user,
		Engagement:            AnalyzeEngagement(interactions),
		TagProfile:            TopTags(TagProfileFromInteractions(interactions), profileTopTags),
		Preferences:           user.Preferences,
		RecommendationsServed: served,
	}, nil
}

// UpdatePreferences stores explicit preferences, creating the user if needed.
func (e *Engine) UpdatePreferences(ctx context.Context, username string, prefs *models.UserPreferences) (*models.User, error) {
	return e.store.Users.UpdatePreferences(ctx, username, prefs)
}

// InteractionStats is the service-wide interaction dashboard.
type InteractionStats struct {
	TotalInteractions   int64                     `json:"total_interactions"`
	TotalUsers          int64                     `json:"total_users"`
	TotalPosts          int64                     `json:"total_posts"`
	ByType              []repository.TypeCount    `json:"interactions_by_type"`
	MostActiveUsers     []repository.UserActivity `json:"most_active_users"`
	MostInteractedPosts []repository.PostActivity `json:"most_interacted_posts"`
}

// InteractionStats aggregates totals, per-type counts and the most active
// users and posts.
func (e *Engine) InteractionStats(ctx context.Context) (*InteractionStats, error) {
	var stats InteractionStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		stats.TotalInteractions, err = e.store.Interactions.GetTotalInteractionCount(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TotalUsers, err = e.store.Users.GetTotalUserCount(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.TotalPosts, err = e.store.Posts.GetTotalPostCount(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.ByType, err = e.store.Interactions.CountByType(gctx, 0)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MostActiveUsers, err = e.store.Interactions.MostActiveUsers(gctx, statsTopN)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MostInteractedPosts, err = e.store.Interactions.MostInteractedPosts(gctx, statsTopN)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// LogEntry is one recommendation log row as shown in the viewer.
type LogEntry struct {
	ID                uint              `json:"id"`
	Username          string            `json:"username"`
	Algorithm         string            `json:"algorithm_used"`
	PostCount         int               `json:"post_count"`
	AverageConfidence float64           `json:"average_confidence"`
	RequestParams     map[string]string `json:"request_params,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// RecentLogs returns the newest recommendation logs. limit is clamped to [1, 50]
// with 0 meaning the default of 10.
func (e *Engine) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultLogLimit
	case limit > maxLogLimit:
		limit = maxLogLimit
	}

	logs, err := e.store.Logs.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		entry := LogEntry{
			ID:                l.ID,
			Algorithm:         l.AlgorithmUsed,
			PostCount:         l.PostCount(),
			AverageConfidence: l.AverageConfidence(),
			Timestamp:         l.Timestamp,
		}
		if l.User != nil {
			entry.Username = l.User.Username
		}
		if len(l.RequestParams) > 0 {
			_ = json.Unmarshal(l.RequestParams, &entry.RequestParams)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
