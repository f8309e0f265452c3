package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/constants"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
	"github.com/yukikurage/taskhub-api/internal/validation"
)

// ValidateBody decodes the JSON body into T, normalizes it, and rejects the request with the
// full field error list when it does not validate. The payload is stored for
// GetPayload.
func ValidateBody[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload T
		if err := c.ShouldBindJSON(&payload); err != nil {
			apierrors.BadRequest(c, "Invalid request body")
			c.Abort()
			return
		}

		if n, ok := any(&payload).(validation.Normalizer); ok {
			n.Normalize()
		}

		if fieldErrors := validation.Struct(payload); len(fieldErrors) > 0 {
			apierrors.ValidationFailed(c, fieldErrors)
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyPayload, payload)
		c.Next()
	}
}

// GetPayload returns the body validated by ValidateBody[T]
func GetPayload[T any](c *gin.Context) (T, bool) {
	value, exists := c.Get(constants.ContextKeyPayload)
	if !exists {
		var zero T
		return zero, false
	}
	payload, ok := value.(T)
	return payload, ok
}
