package middleware

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
	"github.com/yukikurage/taskhub-api/internal/models"
)

// RequireRole allows the request through only for callers holding one of roles.
// It must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, exists := GetCaller(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}

		apierrors.Forbidden(c, "User role "+string(caller.Role)+" is not authorized to access this route")
		c.Abort()
	}
}
