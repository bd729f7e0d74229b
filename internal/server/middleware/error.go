package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/polychat/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error as the JSON error body.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// a handler that already started writing (e.g. an SSE stream) keeps its response
		if c.Writer.Written() {
			logger.Warn("Error after response was written", zap.Error(err))
			return
		}

		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Log != nil {
				logger.Error("Request failed", zap.Int("status", apiErr.Status), zap.Error(apiErr.Log))
			}
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
			return
		}

		logger.Error("Unhandled error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.InternalError(err))
	}
}
