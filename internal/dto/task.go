package dto

import (
	"time"

	"github.com/yukikurage/taskhub-api/internal/models"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate"`
	User        UserSummaryDTO      `json:"user"`
	AssignedBy  *string             `json:"assignedBy"`
	IsArchived  bool                `json:"isArchived"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// TaskStatsDTO represents aggregate task counts
type TaskStatsDTO struct {
	Total    int64                       `json:"total"`
	Overdue  int64                       `json:"overdue"`
	ByStatus map[models.TaskStatus]int64 `json:"byStatus"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		User:        UserSummaryDTO{ID: task.UserID},
		AssignedBy:  task.AssignedByID,
		IsArchived:  task.IsArchived,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	// Include owner details if preloaded
	if task.Owner.ID != "" {
		dto.User.Name = task.Owner.Name
		dto.User.Email = task.Owner.Email
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return items
}
