// Package testutil provides database and fixture helpers for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskhub-api/internal/database"
	"github.com/yukikurage/taskhub-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Password is the plain-text password of every fixture user
const Password = "password123"

// NewTestDB opens a migrated in-memory SQLite database
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	// Each pooled connection would otherwise get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// CreateUser inserts a user with the fixture password
func CreateUser(t *testing.T, db *gorm.DB, name, email string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// TaskOption customizes a fixture task
type TaskOption func(*models.Task)

func WithStatus(status models.TaskStatus) TaskOption {
	return func(t *models.Task) { t.Status = status }
}

func WithPriority(priority models.TaskPriority) TaskOption {
	return func(t *models.Task) { t.Priority = priority }
}

func WithDueDate(due time.Time) TaskOption {
	return func(t *models.Task) {
		due = due.UTC()
		t.DueDate = &due
	}
}

func Archived() TaskOption {
	return func(t *models.Task) { t.IsArchived = true }
}

func WithCreatedAt(at time.Time) TaskOption {
	return func(t *models.Task) { t.CreatedAt = at.UTC() }
}

// CreateTask inserts a pending, medium priority task owned by owner
func CreateTask(t *testing.T, db *gorm.DB, owner *models.User, title string, opts ...TaskOption) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:       title,
		Description: title + " description",
		Status:      models.TaskStatusPending,
		Priority:    models.TaskPriorityMedium,
		UserID:      owner.ID,
	}
	for _, opt := range opts {
		opt(task)
	}

	require.NoError(t, db.Omit(clause.Associations).Create(task).Error)
	return task
}
