package models

import (
	"slices"
	"time"

	"github.com/yukikurage/taskhub-api/internal/utils"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
}

func (s TaskStatus) Valid() bool {
	return slices.Contains(TaskStatuses, s)
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID           string       `gorm:"primarykey;type:varchar(36)" bson:"_id" json:"id"`
	Title        string       `gorm:"type:varchar(100);not null" bson:"title" json:"title"`
	Description  string       `gorm:"type:varchar(500);not null" bson:"description" json:"description"`
	Status       TaskStatus   `gorm:"type:varchar(20);not null;default:'pending';index:idx_tasks_user_status,priority:2" bson:"status" json:"status"`
	Priority     TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" bson:"priority" json:"priority"`
	DueDate      *time.Time   `bson:"dueDate,omitempty" json:"dueDate"`
	UserID       string       `gorm:"type:varchar(36);not null;index:idx_tasks_user_status,priority:1" bson:"user" json:"user"`
	AssignedByID *string      `gorm:"type:varchar(36)" bson:"assignedBy" json:"assignedBy"`
	IsArchived   bool         `gorm:"not null;default:false" bson:"isArchived" json:"isArchived"`
	CreatedAt    time.Time    `gorm:"index:idx_tasks_created_at,sort:desc" bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`

	// Relations
	Owner User `gorm:"foreignKey:UserID" bson:"-" json:"-"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = utils.NewID()
	}
	return nil
}

// IsOverdue reports whether the task is past due and still open at now.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskStatusCompleted
}
