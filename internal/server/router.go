// Package server assembles the HTTP router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/constants"
	"github.com/yukikurage/taskhub-api/internal/database"
	"github.com/yukikurage/taskhub-api/internal/dto"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
	"github.com/yukikurage/taskhub-api/internal/handlers"
	"github.com/yukikurage/taskhub-api/internal/metrics"
	"github.com/yukikurage/taskhub-api/internal/middleware"
	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/services"
)

// Deps are the collaborators the router is built from. Sessions, Metrics and
// Suggester are optional.
type Deps struct {
	Logger    *log.Logger
	Store     *database.Store
	Tokens    *services.TokenManager
	Sessions  sessions.Store
	Metrics   *metrics.Metrics
	Suggester services.TaskSuggester
}

// NewRouter wires services, handlers and middleware into a gin engine
func NewRouter(deps Deps) *gin.Engine {
	authService := services.NewAuthService(deps.Store.Users, deps.Tokens)
	taskService := services.NewTaskService(deps.Store.Tasks, deps.Store.Users, deps.Suggester)

	authHandler := handlers.NewAuthHandler(authService)
	taskHandler := handlers.NewTaskHandler(taskService)

	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.ErrorHandler(deps.Logger))
	if deps.Sessions != nil {
		r.Use(sessions.Sessions(constants.SessionCookieName, deps.Sessions))
	}

	healthCheck := health(deps.Store, deps.Logger)
	r.GET("/health", healthCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	requireAuth := middleware.RequireAuth(authService)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	api := r.Group(constants.APIPrefix)
	{
		api.GET("/health", healthCheck)

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", middleware.ValidateBody[dto.RegisterRequest](), authHandler.Register)
			auth.POST("/login", middleware.ValidateBody[dto.LoginRequest](), authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.Me)
			auth.PUT("/profile", requireAuth, middleware.ValidateBody[dto.UpdateProfileRequest](), authHandler.UpdateProfile)
			auth.PUT("/password", requireAuth, middleware.ValidateBody[dto.ChangePasswordRequest](), authHandler.ChangePassword)
			auth.GET("/users", requireAuth, requireAdmin, authHandler.ListUsers)
			auth.PUT("/users/:id/role", requireAuth, requireAdmin, middleware.ValidateBody[dto.UpdateRoleRequest](), authHandler.UpdateRole)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("/stats", taskHandler.GetStats)
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("", middleware.ValidateBody[dto.CreateTaskRequest](), taskHandler.CreateTask)
			tasks.POST("/suggest", middleware.ValidateBody[dto.SuggestTasksRequest](), taskHandler.SuggestTasks)
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PUT("/:id", middleware.ValidateBody[dto.UpdateTaskRequest](), taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.PATCH("/:id/archive", taskHandler.ToggleArchive)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		apierrors.NotFound(c, fmt.Sprintf("Route %s not found", c.Request.URL.Path))
	})

	return r
}

const healthCheckTimeout = 2 * time.Second

// health reports liveness plus whether the store answers a ping
func health(store *database.Store, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		timestamp := time.Now().UTC().Format(time.RFC3339)
		if err := store.Ping(ctx); err != nil {
			logger.Warn("Health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success":   false,
				"message":   "Database is unavailable",
				"database":  "disconnected",
				"timestamp": timestamp,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Server is running!",
			"database":  "connected",
			"timestamp": timestamp,
		})
	}
}
