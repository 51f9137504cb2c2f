package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"curriculum-backend/pkg/logger"
)

const maxRequestIDLength = 128

// RequestIDMiddleware keeps a caller supplied X-Request-ID or issues a new
// one, and puts it on the request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		ctx := logger.ContextWithFields(c.Request.Context(), map[string]interface{}{"request_id": requestID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
