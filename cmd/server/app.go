package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/config"
	"github.com/yukikurage/taskhub-api/internal/constants"
	"github.com/yukikurage/taskhub-api/internal/database"
	"github.com/yukikurage/taskhub-api/internal/dto"
	"github.com/yukikurage/taskhub-api/internal/logging"
	"github.com/yukikurage/taskhub-api/internal/metrics"
	"github.com/yukikurage/taskhub-api/internal/repository"
	"github.com/yukikurage/taskhub-api/internal/server"
	"github.com/yukikurage/taskhub-api/internal/services"
	"github.com/yukikurage/taskhub-api/internal/validation"
)

const shutdownTimeout = 10 * time.Second

// bootstrap loads configuration and opens the store shared by every command
func bootstrap(ctx context.Context, configPath string) (*config.Config, *log.Logger, *database.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	store, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, store, nil
}

func serve(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, store, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)

	sessionStore, err := server.NewSessionStore(cfg)
	if err != nil {
		return err
	}

	// Initialize AI service
	var suggester services.TaskSuggester
	if cfg.OpenAIAPIKey != "" {
		suggester = services.NewAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, task suggestions are disabled")
	}

	router := server.NewRouter(server.Deps{
		Logger:    logger,
		Store:     store,
		Tokens:    services.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire),
		Sessions:  sessionStore,
		Metrics:   metrics.New(),
		Suggester: suggester,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", srv.Addr, "prefix", constants.APIPrefix, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, logger, store, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("Migrations completed")
	return nil
}

func createAdmin(ctx context.Context, configPath, name, email, password string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, store, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	authService := services.NewAuthService(store.Users, services.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire))

	// A new account goes through the same rules as registration
	_, err = store.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		req := dto.RegisterRequest{Name: name, Email: email, Password: password}
		req.Normalize()
		if errs := validation.Struct(req); len(errs) > 0 {
			return fmt.Errorf("invalid admin account: %s", errs[0].Message)
		}
	} else if err != nil {
		return err
	}

	user, created, err := authService.EnsureAdmin(ctx, services.RegisterInput{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}

	if created {
		logger.Info("Admin account created", "id", user.ID, "email", user.Email)
	} else {
		logger.Info("Account has admin role", "id", user.ID, "email", user.Email)
	}
	return nil
}

func closeStore(store *database.Store, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := store.Close(ctx); err != nil {
		logger.Warn("Failed to close database", "err", err)
	}
}
