package middleware

import (
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
)

// ErrorHandler logs errors pushed with c.Error and answers with the generic
// 500 envelope unless a response was already written
func ErrorHandler(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, err := range c.Errors {
			logger.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err.Err)
		}

		if !c.Writer.Written() {
			apierrors.InternalError(c)
		}
	}
}

// Recovery converts panics into the generic 500 envelope
func Recovery(logger *log.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", recovered)
		apierrors.InternalError(c)
		c.Abort()
	})
}
