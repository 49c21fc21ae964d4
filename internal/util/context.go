package util

import (
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key set by the request id middleware.
const RequestIDKey = "request_id"

// GetRequestID returns the request id stored on the context, or "".
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(RequestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
