package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yukikurage/taskhub-api/internal/constants"
	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/repository"
	"github.com/yukikurage/taskhub-api/internal/utils"
	"github.com/yukikurage/taskhub-api/internal/validation"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrTaskForbidden          = errors.New("not authorized to access this task")
	ErrAssigneeNotFound       = errors.New("user to assign task not found")
	ErrInvalidStatusFilter    = errors.New("invalid status filter")
	ErrInvalidPriorityFilter  = errors.New("invalid priority filter")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
)

// ValidationError reports field-level problems with a task
type ValidationError struct {
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// CanAccess reports whether caller may read or modify a task owned by ownerID
func CanAccess(caller models.Caller, ownerID string) bool {
	return ownerID == caller.ID || caller.IsAdmin()
}

// TaskService handles task business logic
type TaskService struct {
	taskRepo  repository.TaskRepository
	userRepo  repository.UserRepository
	suggester TaskSuggester
	now       func() time.Time
}

// NewTaskService creates a new TaskService. suggester may be nil when AI suggestions are disabled.
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, suggester TaskSuggester) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		suggester: suggester,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ListTasksInput represents the raw listing query
type ListTasksInput struct {
	Status          string
	Priority        string
	User            string
	IncludeArchived bool
	Page            int
	Limit           int
}

// TaskPage is one page of a task listing
type TaskPage struct {
	Tasks      []models.Task
	Total      int64
	Pagination utils.PaginationParams
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
	AssignTo    string
}

// UpdateTaskInput represents a partial update. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *models.TaskStatus
	Priority     *models.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
	IsArchived   *bool
}

// BuildTaskFilter turns a listing query into a repository filter. Non-admins
// are always restricted to their own tasks and their user filter is ignored.
func BuildTaskFilter(caller models.Caller, input ListTasksInput) (repository.TaskFilter, error) {
	filter := repository.TaskFilter{
		IncludeArchived: input.IncludeArchived,
		Page:            utils.NewPaginationParams(input.Page, input.Limit),
	}

	if input.Status != "" {
		status := models.TaskStatus(input.Status)
		if !status.Valid() {
			return repository.TaskFilter{}, ErrInvalidStatusFilter
		}
		filter.Status = &status
	}
	if input.Priority != "" {
		priority := models.TaskPriority(input.Priority)
		if !priority.Valid() {
			return repository.TaskFilter{}, ErrInvalidPriorityFilter
		}
		filter.Priority = &priority
	}

	switch {
	case !caller.IsAdmin():
		ownerID := caller.ID
		filter.OwnerID = &ownerID
	case input.User != "":
		ownerID := input.User
		filter.OwnerID = &ownerID
	}

	return filter, nil
}

// ListTasks returns one page of the tasks visible to caller
func (s *TaskService) ListTasks(ctx context.Context, caller models.Caller, input ListTasksInput) (*TaskPage, error) {
	filter, err := BuildTaskFilter(caller, input)
	if err != nil {
		return nil, err
	}

	tasks, total, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return &TaskPage{
		Tasks:      tasks,
		Total:      total,
		Pagination: filter.Page,
	}, nil
}

// GetTask returns a task with its owner if caller may access it
func (s *TaskService) GetTask(ctx context.Context, caller models.Caller, taskID string) (*models.Task, error) {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !CanAccess(caller, task.UserID) {
		return nil, ErrTaskForbidden
	}

	return task, nil
}

// CreateTask creates a task owned by caller, or by the assignee when an admin assigns it
func (s *TaskService) CreateTask(ctx context.Context, caller models.Caller, input CreateTaskInput) (*models.Task, error) {
	now := s.now()

	task := &models.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      input.Status,
		Priority:    input.Priority,
		UserID:      caller.ID,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	if input.DueDate != nil {
		due := input.DueDate.UTC()
		task.DueDate = &due
	}

	var fieldErrors []validation.FieldError
	fieldErrors = append(fieldErrors, checkTask(task)...)
	fieldErrors = append(fieldErrors, checkDueDate(task.DueDate, now)...)
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	// Only admins assign, and assigning to oneself is a plain create
	if caller.IsAdmin() && input.AssignTo != "" && input.AssignTo != caller.ID {
		exists, err := s.userExists(ctx, input.AssignTo)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrAssigneeNotFound
		}

		assignedBy := caller.ID
		task.UserID = input.AssignTo
		task.AssignedByID = &assignedBy
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return s.reload(ctx, task.ID)
}

// UpdateTask applies a partial update. Owner and assigner never change.
func (s *TaskService) UpdateTask(ctx context.Context, caller models.Caller, taskID string, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.GetTask(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.IsArchived != nil {
		task.IsArchived = *input.IsArchived
	}

	fieldErrors := checkTask(task)

	// A stored past due date does not block unrelated edits; only a newly supplied one is checked
	switch {
	case input.ClearDueDate:
		task.DueDate = nil
	case input.DueDate != nil:
		due := input.DueDate.UTC()
		task.DueDate = &due
		fieldErrors = append(fieldErrors, checkDueDate(task.DueDate, s.now())...)
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.reload(ctx, task.ID)
}

// DeleteTask permanently removes a task
func (s *TaskService) DeleteTask(ctx context.Context, caller models.Caller, taskID string) error {
	task, err := s.GetTask(ctx, caller, taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// ToggleArchive flips the archived flag of a task
func (s *TaskService) ToggleArchive(ctx context.Context, caller models.Caller, taskID string) (*models.Task, error) {
	task, err := s.GetTask(ctx, caller, taskID)
	if err != nil {
		return nil, err
	}

	task.IsArchived = !task.IsArchived

	if err := s.taskRepo.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to toggle archive: %w", err)
	}

	return task, nil
}

// Stats aggregates the tasks visible to caller, archived ones included
func (s *TaskService) Stats(ctx context.Context, caller models.Caller) (*repository.TaskStats, error) {
	filter := repository.StatsFilter{Now: s.now()}
	if !caller.IsAdmin() {
		ownerID := caller.ID
		filter.OwnerID = &ownerID
	}

	stats, err := s.taskRepo.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compute task stats: %w", err)
	}

	return stats, nil
}

// SuggestTasks extracts draft tasks from text. Drafts are normalized to the
// task constraints; unusable ones are dropped.
func (s *TaskService) SuggestTasks(ctx context.Context, text string) ([]SuggestedTask, error) {
	if s.suggester == nil {
		return nil, ErrAIServiceNotConfigured
	}

	now := s.now()
	drafts, err := s.suggester.SuggestTasks(ctx, text, now)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest tasks: %w", err)
	}

	suggestions := make([]SuggestedTask, 0, len(drafts))
	for _, draft := range drafts {
		draft.Title = truncate(strings.TrimSpace(draft.Title), constants.MaxTitleLength)
		if draft.Title == "" {
			continue
		}

		draft.Description = truncate(strings.TrimSpace(draft.Description), constants.MaxDescriptionLength)
		if draft.Description == "" {
			draft.Description = draft.Title
		}
		if !draft.Priority.Valid() {
			draft.Priority = models.TaskPriorityMedium
		}
		if draft.DueDate != nil && !draft.DueDate.After(now) {
			draft.DueDate = nil
		}

		suggestions = append(suggestions, draft)
		if len(suggestions) == constants.MaxAISuggestedTasks {
			break
		}
	}

	return suggestions, nil
}

func (s *TaskService) findTask(ctx context.Context, taskID string) (*models.Task, error) {
	if !utils.IsValidID(taskID) {
		return nil, ErrTaskNotFound
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// reload fetches a freshly written task with its owner
func (s *TaskService) reload(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return task, nil
}

func (s *TaskService) userExists(ctx context.Context, userID string) (bool, error) {
	if !utils.IsValidID(userID) {
		return false, nil
	}

	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check assignee: %w", err)
	}
	return exists, nil
}

// taskRecord mirrors the stored constraints of a task
type taskRecord struct {
	Title       string              `json:"title" validate:"notblank,max=100"`
	Description string              `json:"description" validate:"notblank,max=500"`
	Status      models.TaskStatus   `json:"status" validate:"oneof=pending in-progress completed cancelled"`
	Priority    models.TaskPriority `json:"priority" validate:"oneof=low medium high urgent"`
}

func checkTask(task *models.Task) []validation.FieldError {
	return validation.Struct(taskRecord{
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
	})
}

func checkDueDate(due *time.Time, now time.Time) []validation.FieldError {
	if due != nil && !due.After(now) {
		return []validation.FieldError{{Field: "dueDate", Message: "Due date must be in the future"}}
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
