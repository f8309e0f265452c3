package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/dto"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
	"github.com/yukikurage/taskhub-api/internal/middleware"
	"github.com/yukikurage/taskhub-api/internal/services"
	"github.com/yukikurage/taskhub-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns one page of the caller's tasks, or of every task for admins
func (h *TaskHandler) ListTasks(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)

	result, err := h.taskService.ListTasks(c.Request.Context(), caller, services.ListTasksInput{
		Status:          c.Query("status"),
		Priority:        c.Query("priority"),
		User:            c.Query("user"),
		IncludeArchived: c.Query("includeArchived") == "true",
		Page:            params.Page,
		Limit:           params.Limit,
	})
	if err != nil {
		respondTaskError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, dto.Page(
		dto.ToTaskDTOs(result.Tasks),
		len(result.Tasks),
		result.Total,
		utils.BuildPagination(result.Pagination, result.Total),
	))
}

// GetTask returns a specific task by ID
func (h *TaskHandler) GetTask(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondTaskError(c, err, "Not authorized to access this task")
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToTaskDTO(*task)))
}

// CreateTask creates a new task. Expects ValidateBody[dto.CreateTaskRequest].
func (h *TaskHandler) CreateTask(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	req, ok := middleware.GetPayload[dto.CreateTaskRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), caller, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssignTo:    req.AssignTo,
	})
	if err != nil {
		respondTaskError(c, err, "")
		return
	}

	c.JSON(http.StatusCreated, dto.OKWithMessage("Task created successfully", dto.ToTaskDTO(*task)))
}

// UpdateTask updates an existing task. Expects ValidateBody[dto.UpdateTaskRequest].
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	req, ok := middleware.GetPayload[dto.UpdateTaskRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		IsArchived:  req.IsArchived,
	}
	if req.DueDate.Set {
		input.DueDate = req.DueDate.Time
		input.ClearDueDate = req.DueDate.Time == nil
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), caller, c.Param("id"), input)
	if err != nil {
		respondTaskError(c, err, "Not authorized to update this task")
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Task updated successfully", dto.ToTaskDTO(*task)))
}

// DeleteTask permanently deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondTaskError(c, err, "Not authorized to delete this task")
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Task deleted successfully", nil))
}

// ToggleArchive archives an active task or restores an archived one
func (h *TaskHandler) ToggleArchive(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	task, err := h.taskService.ToggleArchive(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondTaskError(c, err, "Not authorized to archive this task")
		return
	}

	message := "Task unarchived successfully"
	if task.IsArchived {
		message = "Task archived successfully"
	}
	c.JSON(http.StatusOK, dto.OKWithMessage(message, dto.ToTaskDTO(*task)))
}

// GetStats returns aggregate counts over the caller's tasks, or all tasks for admins
func (h *TaskHandler) GetStats(c *gin.Context) {
	caller, exists := middleware.GetCaller(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	stats, err := h.taskService.Stats(c.Request.Context(), caller)
	if err != nil {
		respondTaskError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.TaskStatsDTO{
		Total:    stats.Total,
		Overdue:  stats.Overdue,
		ByStatus: stats.ByStatus,
	}))
}

// SuggestTasks drafts tasks from free text. Nothing is stored.
func (h *TaskHandler) SuggestTasks(c *gin.Context) {
	req, ok := middleware.GetPayload[dto.SuggestTasksRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	suggestions, err := h.taskService.SuggestTasks(c.Request.Context(), req.Text)
	if err != nil {
		respondTaskError(c, err, "")
		return
	}

	count := len(suggestions)
	c.JSON(http.StatusOK, dto.Response{
		Success: true,
		Count:   &count,
		Data:    suggestions,
	})
}

func respondTaskError(c *gin.Context, err error, forbiddenMessage string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.ValidationFailed(c, verr.Errors)
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrTaskForbidden):
		apierrors.Forbidden(c, forbiddenMessage)
	case errors.Is(err, services.ErrAssigneeNotFound):
		apierrors.NotFound(c, "User to assign task not found")
	case errors.Is(err, services.ErrInvalidStatusFilter):
		apierrors.BadRequest(c, "Invalid status filter")
	case errors.Is(err, services.ErrInvalidPriorityFilter):
		apierrors.BadRequest(c, "Invalid priority filter")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, "AI service is not configured. Please set OPENAI_API_KEY environment variable.")
	default:
		_ = c.Error(err)
	}
}
