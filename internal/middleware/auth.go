package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/constants"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/services"
)

// Authenticator resolves request credentials to a stored user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// RequireAuth resolves the caller from a bearer token, falling back to the
// login session when no Authorization header is sent
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c, auth)
		if err != nil {
			if errors.Is(err, services.ErrInvalidToken) || errors.Is(err, services.ErrUserNotFound) || errors.Is(err, errNoCredentials) {
				apierrors.Unauthorized(c, "")
			} else {
				_ = c.Error(err)
			}
			c.Abort()
			return
		}

		// Store identity in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, user.ID)
		c.Set(constants.ContextKeyCaller, models.CallerFrom(*user))
		c.Next()
	}
}

var errNoCredentials = errors.New("no credentials")

func resolveUser(c *gin.Context, auth Authenticator) (*models.User, error) {
	ctx := c.Request.Context()

	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return nil, services.ErrInvalidToken
		}
		return auth.Authenticate(ctx, strings.TrimSpace(token))
	}

	// Sessions are only available when the router mounts the session middleware
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil, errNoCredentials
	}
	userID, ok := sessions.Default(c).Get(constants.ContextKeyUserID).(string)
	if !ok || userID == "" {
		return nil, errNoCredentials
	}
	return auth.GetUser(ctx, userID)
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}

// GetCaller retrieves the authenticated identity from context
func GetCaller(c *gin.Context) (models.Caller, bool) {
	value, exists := c.Get(constants.ContextKeyCaller)
	if !exists {
		return models.Caller{}, false
	}
	caller, ok := value.(models.Caller)
	return caller, ok
}
