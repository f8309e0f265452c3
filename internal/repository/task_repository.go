package repository

import (
	"context"

	"github.com/yukikurage/taskhub-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return translateGormError(r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error)
}

// FindByID finds a task by ID with its owner preloaded
func (r *GormTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Preload("Owner").First(&task, "id = ?", id).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	tasks := []models.Task{}
	err := r.filtered(ctx, filter).
		Preload("Owner").
		Order("tasks.created_at DESC").
		Scopes(Paginate(filter.Page)).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *GormTaskRepository) filtered(ctx context.Context, filter TaskFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Task{}).Scopes(OwnedBy(filter.OwnerID))

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if !filter.IncludeArchived {
		query = query.Where("tasks.is_archived = ?", false)
	}

	return query
}

// Update overwrites every column of an existing task. It never inserts.
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	result := r.db.WithContext(ctx).
		Model(task).
		Select("*").
		Omit(clause.Associations).
		Where("id = ?", task.ID).
		Updates(task)
	if result.Error != nil {
		return translateGormError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard deletes a task
func (r *GormTaskRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type statusCount struct {
	Status models.TaskStatus
	Count  int64
}

// Stats counts tasks by status plus the open ones past their due date
func (r *GormTaskRepository) Stats(ctx context.Context, filter StatsFilter) (*TaskStats, error) {
	scoped := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Task{}).Scopes(OwnedBy(filter.OwnerID))
	}

	var rows []statusCount
	if err := scoped().Select("tasks.status AS status, COUNT(*) AS count").Group("tasks.status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &TaskStats{ByStatus: make(map[models.TaskStatus]int64, len(rows))}
	if err := scoped().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := scoped().
		Where("tasks.due_date < ? AND tasks.status <> ?", filter.Now, models.TaskStatusCompleted).
		Count(&stats.Overdue).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.Count > 0 {
			stats.ByStatus[row.Status] = row.Count
		}
	}

	return stats, nil
}
