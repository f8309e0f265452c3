package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/dto"
	"github.com/yukikurage/taskhub-api/internal/validation"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Service errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError represents a standardized API error
type APIError struct {
	Status  int
	Code    string
	Message string
	Errors  []validation.FieldError
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Envelope renders the error as a failed response envelope
func (e *APIError) Envelope() dto.Response {
	return dto.Response{
		Success: false,
		Code:    e.Code,
		Message: e.Message,
		Errors:  e.Errors,
	}
}

// Predefined errors
var (
	ErrUnauthorized       = NewAPIError(http.StatusUnauthorized, ErrCodeUnauthorized, "Not authorized to access this route")
	ErrForbidden          = NewAPIError(http.StatusForbidden, ErrCodeForbidden, "Access denied")
	ErrNotFound           = NewAPIError(http.StatusNotFound, ErrCodeNotFound, "Resource not found")
	ErrInvalidInput       = NewAPIError(http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
	ErrInternalError      = NewAPIError(http.StatusInternalServerError, ErrCodeInternalError, "Server Error")
	ErrServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service temporarily unavailable")
)

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err *APIError) {
	c.JSON(err.Status, err.Envelope())
}

// Helper functions for common error responses

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = ErrUnauthorized.Message
	}
	RespondWithError(c, NewAPIError(http.StatusUnauthorized, ErrCodeUnauthorized, message))
}

// InvalidCredentials sends a 401 response for a failed login
func InvalidCredentials(c *gin.Context, message string) {
	RespondWithError(c, NewAPIError(http.StatusUnauthorized, ErrCodeInvalidCredentials, message))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = ErrForbidden.Message
	}
	RespondWithError(c, NewAPIError(http.StatusForbidden, ErrCodeForbidden, message))
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = ErrNotFound.Message
	}
	RespondWithError(c, NewAPIError(http.StatusNotFound, ErrCodeNotFound, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	RespondWithError(c, NewAPIError(http.StatusBadRequest, ErrCodeInvalidInput, message))
}

// ValidationFailed sends a 400 response listing every rejected field
func ValidationFailed(c *gin.Context, fieldErrors []validation.FieldError) {
	err := NewAPIError(http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed")
	err.Errors = fieldErrors
	RespondWithError(c, err)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	if message == "" {
		message = "Resource conflict"
	}
	RespondWithError(c, NewAPIError(http.StatusConflict, ErrCodeConflict, message))
}

// InternalError sends a generic 500 response; details stay in the server log
func InternalError(c *gin.Context) {
	RespondWithError(c, ErrInternalError)
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = ErrServiceUnavailable.Message
	}
	RespondWithError(c, NewAPIError(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message))
}
