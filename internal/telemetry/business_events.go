package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessEvents provides helper methods for tracing recommendation operations
// above the HTTP/DB level (feed generation, interaction writes, matrix rebuilds).
type BusinessEvents struct {
	tracer trace.Tracer
}

// NewBusinessEvents creates a new business events tracer
func NewBusinessEvents() *BusinessEvents {
	return &BusinessEvents{
		tracer: otel.Tracer("business-events"),
	}
}

// ============================================================================
// FEED OPERATIONS
// ============================================================================

// FeedEventAttrs attributes for feed-related operations
type FeedEventAttrs struct {
	Username string
	Page     int
	PageSize int
	Category string
	PostID   uint // reference post for similarity feeds
}

// TraceFeed creates a span for feed generation; feedType is the request
// path (feed, category, trending, similar).
func (be *BusinessEvents) TraceFeed(ctx context.Context, feedType string, attrs FeedEventAttrs) (context.Context, trace.Span) {
	ctx, span := be.tracer.Start(ctx, "recommendations."+feedType,
		trace.WithAttributes(
			attribute.String("feed.type", feedType),
			attribute.Int("feed.page", attrs.Page),
			attribute.Int("feed.page_size", attrs.PageSize),
		),
	)

	if attrs.Username != "" {
		span.SetAttributes(attribute.String("user.username", attrs.Username))
	}
	if attrs.Category != "" {
		span.SetAttributes(attribute.String("feed.category", attrs.Category))
	}
	if attrs.PostID != 0 {
		span.SetAttributes(attribute.Int64("feed.reference_post_id", int64(attrs.PostID)))
	}

	return ctx, span
}

// RecordFeedResult annotates a feed span with the outcome.
func RecordFeedResult(span trace.Span, algorithm string, itemCount, totalCount int, fallbackUsed bool) {
	span.SetAttributes(
		attribute.String("feed.algorithm", algorithm),
		attribute.Int("feed.item_count", itemCount),
		attribute.Int("feed.total_count", totalCount),
	)
	if fallbackUsed {
		span.SetAttributes(attribute.Bool("feed.fallback_used", true))
	}
	span.SetStatus(codes.Ok, "")
}

// ============================================================================
// INTERACTIONS
// ============================================================================

// TraceInteraction creates a span for recording a user interaction
func (be *BusinessEvents) TraceInteraction(ctx context.Context, interactionType string, postID uint) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "interaction.record",
		trace.WithAttributes(
			attribute.String("interaction.type", interactionType),
			attribute.Int64("post.id", int64(postID)),
		),
	)
}

// TraceMatrixRebuild creates a span for a collaborative matrix rebuild
func (be *BusinessEvents) TraceMatrixRebuild(ctx context.Context) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "recommendations.collaborative_rebuild")
}

// ============================================================================
// ERROR RECORDING
// ============================================================================

// RecordError marks the span failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}

var (
	businessEvents     *BusinessEvents
	businessEventsOnce sync.Once
)

// GetBusinessEvents returns the shared business events tracer
func GetBusinessEvents() *BusinessEvents {
	businessEventsOnce.Do(func() {
		businessEvents = NewBusinessEvents()
	})
	return businessEvents
}
