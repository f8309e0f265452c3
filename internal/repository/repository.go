package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/utils"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateKey is returned when a unique index rejects a write.
	ErrDuplicateKey = errors.New("repository: duplicate key")
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create inserts a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with its owner loaded
	FindByID(ctx context.Context, id string) (*models.Task, error)

	// List retrieves one page of tasks matching the filter, newest first,
	// along with the total number of matches
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Update replaces a stored task
	Update(ctx context.Context, task *models.Task) error

	// Delete permanently removes a task
	Delete(ctx context.Context, id string) error

	// Stats aggregates task counts for the filter
	Stats(ctx context.Context, filter StatsFilter) (*TaskStats, error)
}

// TaskFilter holds filtering options for listing tasks. Nil pointers mean
// the clause is not applied.
type TaskFilter struct {
	OwnerID         *string
	Status          *models.TaskStatus
	Priority        *models.TaskPriority
	IncludeArchived bool
	Page            utils.PaginationParams
}

// StatsFilter scopes an aggregation
type StatsFilter struct {
	OwnerID *string
	Now     time.Time
}

// TaskStats holds aggregate counts. ByStatus only contains statuses that occur.
type TaskStats struct {
	Total    int64
	Overdue  int64
	ByStatus map[models.TaskStatus]int64
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail finds a user by email address
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Update replaces a stored user
	Update(ctx context.Context, user *models.User) error

	// List returns every user, newest first
	List(ctx context.Context) ([]models.User, error)

	// Exists reports whether a user with the ID exists
	Exists(ctx context.Context, id string) (bool, error)
}
