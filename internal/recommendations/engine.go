package recommendations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zfogg/reelrank/internal/cache"
	"github.com/zfogg/reelrank/internal/config"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/metrics"
	"github.com/zfogg/reelrank/internal/models"
	"github.com/zfogg/reelrank/internal/repository"
	"github.com/zfogg/reelrank/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Algorithm labels reported in responses and logs.
const (
	AlgorithmColdStart         = "cold_start_popular"
	AlgorithmHybrid            = "hybrid"
	AlgorithmContentPopularity = "content_popularity"
	AlgorithmCategory          = "category_based"
	AlgorithmTrending          = "trending"
	AlgorithmSimilar           = "content_similarity"
)

var (
	ErrPostNotFound       = repository.ErrPostNotFound
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrInvalidRequest     = repository.ErrInvalidInput
	ErrInvalidInteraction = errors.New("invalid interaction type")

	// ErrUnavailable is returned when neither the requested path nor the
	// trending fallback could produce a result.
	ErrUnavailable = errors.New("recommendations unavailable")
)

const (
	strategyConcurrency = 4
	logWriteTimeout     = 5 * time.Second
)

// FeedRequest asks for a personalized or filtered feed.
type FeedRequest struct {
	Username string
	Page     int
	PageSize int
	Filter   CandidateFilter
	Mood     string
}

// TrendingRequest asks for recently popular posts. Username is optional and
// only used to attribute the recommendation log.
type TrendingRequest struct {
	Username string
	Category string
	Page     int
	PageSize int
}

// SimilarRequest asks for posts similar to a reference post.
type SimilarRequest struct {
	Username string
	PostID   uint
	Page     int
	PageSize int
}

// InteractionRequest is one user action to record.
type InteractionRequest struct {
	Username string
	PostID   uint
	Type     string
	Value    *float64
}

// FeedResult is one page of ranked posts.
type FeedResult struct {
	Posts            []ScoredPost `json:"posts"`
	Algorithm        string       `json:"algorithm_used"`
	TotalCount       int          `json:"total_count"`
	Page             int          `json:"page"`
	PageSize         int          `json:"page_size"`
	ConfidenceScores []float64    `json:"confidence_scores,omitempty"`

	Fallback bool `json:"-"`
	CacheHit bool `json:"-"`
}

// PostIDs returns the ids of the page in rank order.
func (r *FeedResult) PostIDs() []uint {
	ids := make([]uint, len(r.Posts))
	for i := range r.Posts {
		ids[i] = r.Posts[i].Post.ID
	}
	return ids
}

// Scores returns the scores of the page in rank order.
func (r *FeedResult) Scores() []float64 {
	scores := make([]float64, len(r.Posts))
	for i := range r.Posts {
		scores[i] = r.Posts[i].Score
	}
	return scores
}

func emptyResult(algorithm string, page, pageSize int) *FeedResult {
	return &FeedResult{
		Posts:     []ScoredPost{},
		Algorithm: algorithm,
		Page:      page,
		PageSize:  pageSize,
	}
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cache     cache.Store
	scorer    ModelScorer
	overrides map[string]Strategy
	now       func() time.Time
}

// WithCache enables the shared cache tier for trending results and embeddings.
func WithCache(store cache.Store) Option {
	return func(o *engineOptions) { o.cache = store }
}

// WithModelScorer plugs in a learned scorer for the model strategy.
func WithModelScorer(scorer ModelScorer) Option {
	return func(o *engineOptions) { o.scorer = scorer }
}

// WithStrategy replaces a named strategy.
func WithStrategy(name string, s Strategy) Option {
	return func(o *engineOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]Strategy)
		}
		o.overrides[name] = s
	}
}

// WithClock overrides the time source used for recency, trending and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// Engine orchestrates candidate selection, scoring, ranking and logging.
type Engine struct {
	cfg           *config.Config
	store         *repository.Store
	selector      *CandidateSelector
	collaborative *CollaborativeModel
	embeddings    *EmbeddingCache
	cache         cache.Store
	strategies    map[string]Strategy
	events        *telemetry.BusinessEvents
	now           func() time.Time

	logs sync.WaitGroup
}

// NewEngine wires the pipeline over store.
func NewEngine(cfg *config.Config, store *repository.Store, opts ...Option) *Engine {
	o := engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:           cfg,
		store:         store,
		selector:      NewCandidateSelector(store.Posts, 2*cfg.MaxRecommendations),
		collaborative: NewCollaborativeModel(store.Interactions, cfg.CFMatrixTTL, cfg.CFNeighbors),
		embeddings:    NewEmbeddingCache(store.Embeddings, o.cache, cfg.ModelVersion, cfg.EmbeddingDim, cfg.CacheTTL),
		cache:         o.cache,
		events:        telemetry.GetBusinessEvents(),
		now:           o.now,
	}
	e.collaborative.now = o.now
	e.embeddings.now = o.now

	e.strategies = map[string]Strategy{
		StrategyContent:       ContentStrategy(),
		StrategyPopularity:    PopularityStrategy(),
		StrategyPreference:    PreferenceStrategy(),
		StrategyCollaborative: CollaborativeStrategy(e.collaborative),
		StrategyEmbedding:     EmbeddingStrategy(e.embeddings),
		StrategyModel:         ModelStrategy(o.scorer),
		StrategyRecency:       RecencyStrategy(),
		StrategyTrending:      TrendingStrategy(),
	}
	for name, s := range o.overrides {
		e.strategies[name] = s
	}

	return e
}

// Wait blocks until pending recommendation log writes finish.
func (e *Engine) Wait() {
	e.logs.Wait()
}

// Feed returns the personalized feed for a username, creating the user on
// first sight. Users below the cold-start threshold get popular, fresh posts.
func (e *Engine) Feed(ctx context.Context, req FeedRequest) (*FeedResult, error) {
	page, pageSize := e.pagination(req.Page, req.PageSize)
	ctx, span := e.events.TraceFeed(ctx, "feed", telemetry.FeedEventAttrs{
		Username: req.Username,
		Page:     page,
		PageSize: pageSize,
		Category: req.Filter.Category,
	})
	defer span.End()

	return e.serve(ctx, span, req.Username, req.Filter.Category, page, pageSize, feedParams(req, page, pageSize),
		func(ctx context.Context, user *models.User) (*FeedResult, error) {
			return e.personalized(ctx, user, req.Filter, page, pageSize, false)
		})
}

// CategoryFeed runs the personalized pipeline over a filtered candidate set.
// Cold users get the cold-start blend over the same filter. An empty filter
// yields an empty page.
func (e *Engine) CategoryFeed(ctx context.Context, req FeedRequest) (*FeedResult, error) {
	page, pageSize := e.pagination(req.Page, req.PageSize)
	if req.Filter.IsEmpty() {
		return emptyResult(AlgorithmCategory, page, pageSize), nil
	}

	ctx, span := e.events.TraceFeed(ctx, "category", telemetry.FeedEventAttrs{
		Username: req.Username,
		Page:     page,
		PageSize: pageSize,
		Category: req.Filter.Category,
	})
	defer span.End()

	return e.serve(ctx, span, req.Username, req.Filter.Category, page, pageSize, feedParams(req, page, pageSize),
		func(ctx context.Context, user *models.User) (*FeedResult, error) {
			return e.personalized(ctx, user, req.Filter, page, pageSize, true)
		})
}

// FeedForUserID serves the feed for an existing user id. An unknown id
// yields an empty page rather than an error.
func (e *Engine) FeedForUserID(ctx context.Context, userID uint, page, pageSize int) (*FeedResult, error) {
	page, pageSize = e.pagination(page, pageSize)
	user, err := e.store.Users.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return emptyResult(AlgorithmContentPopularity, page, pageSize), nil
	}
	if err != nil {
		return nil, err
	}
	return e.Feed(ctx, FeedRequest{Username: user.Username, Page: page, PageSize: pageSize})
}

// Trending returns the most engaging posts created within the trending window.
func (e *Engine) Trending(ctx context.Context, req TrendingRequest) (*FeedResult, error) {
	page, pageSize := e.pagination(req.Page, req.PageSize)
	ctx, span := e.events.TraceFeed(ctx, "trending", telemetry.FeedEventAttrs{
		Username: req.Username,
		Page:     page,
		PageSize: pageSize,
		Category: req.Category,
	})
	defer span.End()

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	res, err := e.trending(dctx, req.Category, page, pageSize)
	cancel()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var user *models.User
	if strings.TrimSpace(req.Username) != "" {
		user, err = e.store.Users.GetOrCreateUser(ctx, req.Username)
		if err != nil {
			logger.WarnWithFields("Failed to resolve user for trending log", err, logger.WithUsername(req.Username))
			user = nil
		}
	}

	params := map[string]string{
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	}
	if req.Category != "" {
		params["category"] = req.Category
	}
	e.finish(span, start, user, res, params)
	return res, nil
}

// Similar returns posts whose feature vectors are close to the reference
// post, keeping those at or above the similarity threshold.
func (e *Engine) Similar(ctx context.Context, req SimilarRequest) (*FeedResult, error) {
	page, pageSize := e.pagination(req.Page, req.PageSize)
	ctx, span := e.events.TraceFeed(ctx, "similar", telemetry.FeedEventAttrs{
		Username: req.Username,
		Page:     page,
		PageSize: pageSize,
		PostID:   req.PostID,
	})
	defer span.End()

	ref, err := e.store.Posts.GetPost(ctx, req.PostID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	params := map[string]string{
		"post_id":   strconv.FormatUint(uint64(req.PostID), 10),
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	}
	return e.serve(ctx, span, req.Username, "", page, pageSize, params,
		func(ctx context.Context, _ *models.User) (*FeedResult, error) {
			return e.similar(ctx, ref, page, pageSize)
		})
}

// FilterBySimilarity keeps the items scoring at or above threshold.
func FilterBySimilarity(items []ScoredPost, threshold float64) []ScoredPost {
	kept := make([]ScoredPost, 0, len(items))
	for _, item := range items {
		if item.Score >= threshold {
			kept = append(kept, item)
		}
	}
	return kept
}

// RecordInteraction validates and upserts one interaction, creating the user
// on first sight, and drops the user's cached embedding.
func (e *Engine) RecordInteraction(ctx context.Context, req InteractionRequest) (*models.Interaction, error) {
	interactionType := strings.ToLower(strings.TrimSpace(req.Type))
	ctx, span := e.events.TraceInteraction(ctx, interactionType, req.PostID)
	defer span.End()

	if !models.IsValidInteractionType(interactionType) {
		metrics.RecordInteraction("unknown", "invalid")
		return nil, ErrInvalidInteraction
	}

	value := req.Value
	if value != nil && (math.IsNaN(*value) || math.IsInf(*value, 0)) {
		value = nil
	}

	user, err := e.store.Users.GetOrCreateUser(ctx, req.Username)
	if err != nil {
		metrics.RecordInteraction(interactionType, "error")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if _, err := e.store.Posts.GetPost(ctx, req.PostID); err != nil {
		metrics.RecordInteraction(interactionType, "error")
		telemetry.RecordError(span, err)
		return nil, err
	}

	interaction := &models.Interaction{
		UserID:           user.ID,
		PostID:           req.PostID,
		InteractionType:  interactionType,
		InteractionValue: value,
		Timestamp:        e.now().UTC(),
	}
	if err := e.store.Interactions.Upsert(ctx, interaction); err != nil {
		metrics.RecordInteraction(interactionType, "error")
		telemetry.RecordError(span, err)
		return nil, err
	}
	metrics.RecordInteraction(interactionType, "success")

	if err := e.embeddings.InvalidateUser(ctx, user.ID); err != nil {
		logger.WarnWithFields("Failed to invalidate user embedding", err, logger.WithUserID(user.ID))
	}

	logger.Log.Debug("Interaction recorded",
		logger.WithUsername(user.Username),
		logger.WithPostID(req.PostID),
		zap.String("interaction_type", interactionType),
	)
	return interaction, nil
}

// RebuildCollaborative forces a synchronous refresh of the collaborative matrix.
func (e *Engine) RebuildCollaborative(ctx context.Context) (int, error) {
	ctx, span := e.events.TraceMatrixRebuild(ctx)
	defer span.End()

	if err := e.collaborative.Rebuild(ctx); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	return e.collaborative.Users(), nil
}

// serve resolves the user and runs fn under the request deadline. A failing
// or slow path falls back to trending on a fresh context.
func (e *Engine) serve(
	ctx context.Context,
	span trace.Span,
	username, category string,
	page, pageSize int,
	params map[string]string,
	fn func(ctx context.Context, user *models.User) (*FeedResult, error),
) (*FeedResult, error) {
	start := time.Now()

	var user *models.User
	dctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	res, err := func() (*FeedResult, error) {
		if strings.TrimSpace(username) != "" {
			u, err := e.store.Users.GetOrCreateUser(dctx, username)
			if err != nil {
				return nil, err
			}
			user = u
		}
		return fn(dctx, user)
	}()
	cancel()

	if err != nil {
		if errors.Is(err, ErrPostNotFound) || errors.Is(err, ErrInvalidRequest) {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		logger.WarnWithFields("Recommendation path failed, serving trending", err,
			logger.WithUsername(username),
			zap.String("reason", reason),
		)
		metrics.RecordFallback(reason)

		res, err = e.fallback(ctx, category, page, pageSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	e.finish(span, start, user, res, params)
	return res, nil
}

func (e *Engine) fallback(ctx context.Context, category string, page, pageSize int) (*FeedResult, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.RequestTimeout)
	defer cancel()

	res, err := e.trending(fctx, category, page, pageSize)
	if err != nil {
		return nil, err
	}
	res.Fallback = true
	return res, nil
}

func (e *Engine) finish(span trace.Span, start time.Time, user *models.User, res *FeedResult, params map[string]string) {
	telemetry.RecordFeedResult(span, res.Algorithm, len(res.Posts), res.TotalCount, res.Fallback)
	metrics.GetManager().Feed.RecordFeed(metrics.FeedMetric{
		Algorithm:   res.Algorithm,
		ResultCount: len(res.Posts),
		Duration:    time.Since(start),
		CacheHit:    res.CacheHit,
		Fallback:    res.Fallback,
	})
	if user != nil {
		e.logAsync(user.ID, res, params)
	}
}

// personalized scores the candidate set for user. Users below the cold-start
// threshold get the cold-start blend over the same filter, on every feed.
func (e *Engine) personalized(ctx context.Context, user *models.User, filter CandidateFilter, page, pageSize int, category bool) (*FeedResult, error) {
	if user == nil {
		return nil, ErrInvalidRequest
	}

	count, err := e.store.Interactions.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if count < int64(e.cfg.ColdStartThreshold) {
		return e.coldStart(ctx, user, filter, page, pageSize)
	}

	var (
		interactions []models.Interaction
		candidates   []models.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		interactions, err = e.store.Interactions.ListByUser(gctx, user.ID)
		return err
	})
	g.Go(func() error {
		var err error
		candidates, err = e.selector.Select(gctx, filter, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := &ScoringInput{
		User:       user,
		Profile:    TagProfileFromInteractions(interactions),
		Candidates: candidates,
		SeenCounts: seenCounts(interactions),
		Now:        e.now(),
	}
	combiner := PersonalizedCombiner()
	results, err := e.scoreAll(ctx, combiner, in)
	if err != nil {
		return nil, err
	}
	scores := combiner.Combine(candidates, results, in.SeenCounts)

	algorithm := AlgorithmContentPopularity
	switch {
	case category:
		algorithm = AlgorithmCategory
	case usedLearnedSignal(combiner.Contributed(results)):
		algorithm = AlgorithmHybrid
	}
	return e.page(algorithm, zipScores(candidates, scores), page, pageSize), nil
}

func (e *Engine) coldStart(ctx context.Context, user *models.User, filter CandidateFilter, page, pageSize int) (*FeedResult, error) {
	candidates, err := e.selector.Select(ctx, filter, 0)
	if err != nil {
		return nil, err
	}

	in := &ScoringInput{User: user, Candidates: candidates, Now: e.now()}
	combiner := ColdStartCombiner()
	results, err := e.scoreAll(ctx, combiner, in)
	if err != nil {
		return nil, err
	}
	scores := combiner.Combine(candidates, results, nil)
	return e.page(AlgorithmColdStart, zipScores(candidates, scores), page, pageSize), nil
}

func (e *Engine) trending(ctx context.Context, category string, page, pageSize int) (*FeedResult, error) {
	scope := strings.ToLower(strings.TrimSpace(category))
	if scope == "" {
		scope = "all"
	}
	key := cache.Key("trending", scope, strconv.Itoa(page), strconv.Itoa(pageSize))

	if e.cache != nil {
		var cached FeedResult
		err := cache.GetJSON(ctx, e.cache, key, &cached)
		if err == nil {
			metrics.RecordCacheLookup("trending", true)
			cached.CacheHit = true
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logger.Log.Debug("Trending cache read failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheLookup("trending", false)
	}

	now := e.now().UTC()
	candidates, err := e.selector.SelectSince(ctx, CandidateFilter{Category: category}, now.Add(-e.cfg.TrendingWindow), -1)
	if err != nil {
		return nil, err
	}

	in := &ScoringInput{Candidates: candidates, Now: now}
	combiner := TrendingCombiner()
	results, err := e.scoreAll(ctx, combiner, in)
	if err != nil {
		return nil, err
	}
	res := e.page(AlgorithmTrending, zipScores(candidates, combiner.Combine(candidates, results, nil)), page, pageSize)

	if e.cache != nil {
		if err := cache.SetJSON(ctx, e.cache, key, res, e.cfg.TrendingCacheTTL); err != nil {
			logger.Log.Debug("Trending cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return res, nil
}

func (e *Engine) similar(ctx context.Context, ref *models.Post, page, pageSize int) (*FeedResult, error) {
	candidates, err := e.selector.SelectExcluding(ctx, CandidateFilter{}, []uint{ref.ID}, -1)
	if err != nil {
		return nil, err
	}

	refVec, err := e.embeddings.PostVector(ctx, ref)
	if err != nil {
		return nil, err
	}
	vecs, err := e.embeddings.PostVectors(ctx, candidates)
	if err != nil {
		return nil, err
	}

	items := make([]ScoredPost, len(candidates))
	for i := range candidates {
		items[i] = ScoredPost{Post: candidates[i], Score: CosineSimilarity(refVec, vecs[i])}
	}

	res := e.page(AlgorithmSimilar, FilterBySimilarity(items, e.cfg.SimilarityThreshold), page, pageSize)
	res.ConfidenceScores = res.Scores()
	return res, nil
}

// scoreAll runs every weighted strategy of combiner concurrently. Strategies
// never fail the batch; only the request deadline does.
func (e *Engine) scoreAll(ctx context.Context, combiner Combiner, in *ScoringInput) (map[string]Result, error) {
	names := combiner.StrategyNames()
	out := make([]Result, len(names))

	var g errgroup.Group
	g.SetLimit(strategyConcurrency)
	for i, name := range names {
		s, ok := e.strategies[name]
		if !ok {
			continue
		}
		g.Go(func() error {
			out[i] = runStrategy(ctx, name, s, in)
			metrics.RecordStrategy(name, out[i].Available)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(names))
	for i, name := range names {
		results[name] = out[i]
	}
	return results, nil
}

func (e *Engine) page(algorithm string, items []ScoredPost, page, pageSize int) *FeedResult {
	ranked, total := Rank(items, page, pageSize, e.cfg.MaxPageSize)
	return &FeedResult{
		Posts:      ranked,
		Algorithm:  algorithm,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}
}

func (e *Engine) pagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = e.cfg.DefaultPageSize
	}
	if pageSize > e.cfg.MaxPageSize {
		pageSize = e.cfg.MaxPageSize
	}
	return page, pageSize
}

func (e *Engine) logAsync(userID uint, res *FeedResult, params map[string]string) {
	entry, err := models.NewRecommendationLog(models.RecommendationLogParams{
		UserID:        userID,
		PostIDs:       res.PostIDs(),
		Algorithm:     res.Algorithm,
		Scores:        res.Scores(),
		RequestParams: params,
		Timestamp:     e.now().UTC(),
	})
	if err != nil {
		logger.WarnWithFields("Failed to encode recommendation log", err, logger.WithUserID(userID))
		metrics.Get().RecommendationLogsLost.Inc()
		return
	}

	e.logs.Add(1)
	go func() {
		defer e.logs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
		defer cancel()
		if err := e.store.Logs.Create(ctx, entry); err != nil {
			logger.WarnWithFields("Failed to write recommendation log", err,
				logger.WithUserID(userID),
				logger.WithAlgorithm(entry.AlgorithmUsed),
			)
			metrics.Get().RecommendationLogsLost.Inc()
		}
	}()
}

func feedParams(req FeedRequest, page, pageSize int) map[string]string {
	params := req.Filter.Params()
	params["page"] = strconv.Itoa(page)
	params["page_size"] = strconv.Itoa(pageSize)
	if req.Mood != "" {
		params["mood"] = req.Mood
	}
	return params
}

// seenCounts counts prior interactions per post.
func seenCounts(interactions []models.Interaction) map[uint]int {
	seen := make(map[uint]int, len(interactions))
	for i := range interactions {
		seen[interactions[i].PostID]++
	}
	return seen
}

func usedLearnedSignal(contributed []string) bool {
	for _, name := range contributed {
		switch name {
		case StrategyCollaborative, StrategyEmbedding, StrategyModel:
			return true
		}
	}
	return false
}
