package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// recommendation query parameters copied onto the request span
var spanQueryParams = map[string]string{
	"username":     "user.username",
	"page":         "query.page",
	"page_size":    "query.page_size",
	"project_code": "query.project_code",
	"category":     "query.category",
}

// TracingMiddleware traces HTTP requests using OpenTelemetry.
// It wraps otelgin and adds recommendation-specific attributes.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	base := otelgin.Middleware(serviceName)

	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		for param, key := range spanQueryParams {
			if v := c.Query(param); v != "" {
				span.SetAttributes(attribute.String(key, v))
			}
		}
		if postID := c.Param("post_id"); postID != "" {
			span.SetAttributes(attribute.String("post.id", postID))
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, ginErr.Error())
			}
		}
	}
}
