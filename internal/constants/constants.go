package constants

// Context keys shared by middleware and handlers
const (
	ContextKeyUserID  = "user_id"
	ContextKeyCaller  = "caller"
	ContextKeyPayload = "payload"
)

// Session settings
const (
	SessionCookieName = "task_session"
	SessionMaxAge     = 86400 * 7
)

// Pagination defaults
const (
	MinPageSize     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Field limits
const (
	MinPasswordLength    = 6
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MinNameLength        = 2
	MaxNameLength        = 50
)

const (
	MaxAISuggestedTasks = 20
	APIPrefix           = "/api/v1"
)
