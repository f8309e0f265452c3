package dto

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/validation"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"notblank,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,notblank,min=2,max=50"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r *UpdateProfileRequest) Normalize() {
	trimPtr(r.Name)
	trimPtr(r.Email)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type UpdateRoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=user admin"`
}

type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"notblank,max=100"`
	Description string              `json:"description" validate:"notblank,max=500"`
	Status      models.TaskStatus   `json:"status" validate:"omitempty,oneof=pending in-progress completed cancelled"`
	Priority    models.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time          `json:"dueDate" validate:"omitempty,future"`
	AssignTo    string              `json:"assignTo"`
}

func (r *CreateTaskRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.AssignTo = strings.TrimSpace(r.AssignTo)
}

// UpdateTaskRequest carries a partial update. Ownership fields are not
// part of it, so any "user" or "assignedBy" keys in the body are dropped.
type UpdateTaskRequest struct {
	Title       *string              `json:"title" validate:"omitempty,notblank,max=100"`
	Description *string              `json:"description" validate:"omitempty,notblank,max=500"`
	Status      *models.TaskStatus   `json:"status" validate:"omitempty,oneof=pending in-progress completed cancelled"`
	Priority    *models.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     NullableTime         `json:"dueDate" validate:"-"`
	IsArchived  *bool                `json:"isArchived"`
}

func (r *UpdateTaskRequest) Normalize() {
	trimPtr(r.Title)
	trimPtr(r.Description)
}

// Validate checks the due date, which may be explicitly null to clear it
func (r UpdateTaskRequest) Validate(now time.Time) []validation.FieldError {
	if r.DueDate.Time != nil && !r.DueDate.Time.After(now) {
		return []validation.FieldError{{Field: "dueDate", Message: "Due date must be in the future"}}
	}
	return nil
}

type SuggestTasksRequest struct {
	Text string `json:"text" validate:"notblank,max=4000"`
}

func (r *SuggestTasksRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// NullableTime distinguishes an absent JSON field from an explicit null
type NullableTime struct {
	Set  bool
	Time *time.Time
}

func (n *NullableTime) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	n.Time = &t
	return nil
}
