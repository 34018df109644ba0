package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"citron/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestIDMiddleware tags every request with an id, echoed in the
// X-Request-Id header and carried in the request's log context.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-Id", id)

		ctx := utils.LogContext(c.Request.Context(), zap.String("request_id", id))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		utils.GetLogFromContext(c.Request.Context(), s.log).With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		).Info("request handled")
	}
}

// recoveryMiddleware turns a handler panic into a 500 instead of taking
// the process down.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				utils.GetLogFromContext(c.Request.Context(), s.log).With(
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
				).Error("recovered panic in handler")
				respondError(c, http.StatusInternalServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}
