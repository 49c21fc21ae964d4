package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/reelrank/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	correlationHeader = "X-Correlation-ID"
	correlationKey    = "correlation_id"
)

// CorrelationMiddleware propagates a correlation ID through the request context.
// It must run after RequestIDMiddleware, whose ID is used when the client sends none.
// The ID travels in trace baggage so background work such as recommendation
// log writes can pick it up.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationHeader)
		if correlationID == "" {
			correlationID = util.GetRequestID(c)
		}
		if correlationID == "" {
			c.Next()
			return
		}

		c.Set(correlationKey, correlationID)
		c.Header(correlationHeader, correlationID)

		ctx := c.Request.Context()
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("trace.correlation_id", correlationID))
		}
		if member, err := baggage.NewMember(correlationKey, correlationID); err == nil {
			if b, err := baggage.FromContext(ctx).SetMember(member); err == nil {
				ctx = baggage.ContextWithBaggage(ctx, b)
			}
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// SpanEnrichmentMiddleware sets the span status from the final HTTP status.
func SpanEnrichmentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			span.SetStatus(codes.Error, "Server error")
		case status == 404:
			span.SetStatus(codes.Unset, "Not found")
		case status >= 400:
			span.SetStatus(codes.Error, "Client error")
		default:
			span.SetStatus(codes.Ok, "")
		}

		if size := c.Writer.Size(); size > 0 {
			span.SetAttributes(attribute.Int("http.response.size_bytes", size))
		}
	}
}

// GetCorrelationIDFromContext extracts the correlation ID from trace baggage.
func GetCorrelationIDFromContext(ctx context.Context) string {
	return baggage.FromContext(ctx).Member(correlationKey).Value()
}
