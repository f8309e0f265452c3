package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskhub-api/internal/database"
	"github.com/yukikurage/taskhub-api/internal/logging"
	"github.com/yukikurage/taskhub-api/internal/metrics"
	"github.com/yukikurage/taskhub-api/internal/models"
	"github.com/yukikurage/taskhub-api/internal/services"
	"github.com/yukikurage/taskhub-api/internal/testutil"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// envelope mirrors the response body with typed data for assertions
type envelope struct {
	Success    bool            `json:"success"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Count      *int   `json:"count"`
	Total      *int64 `json:"total"`
	Pagination *struct {
		Next *struct{ Page, Limit int } `json:"next"`
		Prev *struct{ Page, Limit int } `json:"prev"`
	} `json:"pagination"`
}

type taskBody struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	DueDate    *time.Time `json:"dueDate"`
	IsArchived bool       `json:"isArchived"`
	AssignedBy *string    `json:"assignedBy"`
	User       struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

type RouterTestSuite struct {
	suite.Suite
	db     *gorm.DB
	tokens *services.TokenManager
	router *gin.Engine

	alice *models.User
	bob   *models.User
	admin *models.User
}

func (suite *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.db = testutil.NewTestDB(suite.T())
	suite.tokens = services.NewTokenManager("test-secret", time.Hour)
	suite.router = NewRouter(Deps{
		Logger:   logging.New(io.Discard, "error"),
		Store:    database.NewGormStore(suite.db),
		Tokens:   suite.tokens,
		Sessions: cookie.NewStore([]byte("secret")),
		Metrics:  metrics.New(),
	})

	suite.alice = testutil.CreateUser(suite.T(), suite.db, "Alice", "alice@example.com", models.RoleUser)
	suite.bob = testutil.CreateUser(suite.T(), suite.db, "Bob", "bob@example.com", models.RoleUser)
	suite.admin = testutil.CreateUser(suite.T(), suite.db, "Admin", "admin@example.com", models.RoleAdmin)
}

func (suite *RouterTestSuite) token(u *models.User) string {
	token, err := suite.tokens.Issue(u.ID)
	suite.Require().NoError(err)
	return token
}

func (suite *RouterTestSuite) do(method, path string, body any, as *models.User) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			suite.Require().NoError(err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+suite.token(as))
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (suite *RouterTestSuite) decode(raw json.RawMessage, v any) {
	suite.Require().NoError(json.Unmarshal(raw, v))
}

func (suite *RouterTestSuite) TestHealth() {
	w, env := suite.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.True(suite.T(), env.Success)
	assert.Equal(suite.T(), "Server is running!", env.Message)
	assert.Contains(suite.T(), w.Body.String(), "timestamp")
	assert.Contains(suite.T(), w.Body.String(), `"database":"connected"`)
}

func (suite *RouterTestSuite) TestHealth_DatabaseDown() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	suite.Require().NoError(sqlDB.Close())

	w, env := suite.do(http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	assert.False(suite.T(), env.Success)
	assert.Equal(suite.T(), "Database is unavailable", env.Message)
	assert.Contains(suite.T(), w.Body.String(), `"database":"disconnected"`)
}

func (suite *RouterTestSuite) TestUnknownRoute() {
	w, env := suite.do(http.MethodGet, "/api/v1/nope", nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.False(suite.T(), env.Success)
	assert.Equal(suite.T(), "Route /api/v1/nope not found", env.Message)
}

func (suite *RouterTestSuite) TestRegisterLoginMe() {
	w, env := suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": "Carol", "email": "carol@example.com", "password": "supersecret",
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)

	var auth struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	suite.decode(env.Data, &auth)
	assert.NotEmpty(suite.T(), auth.Token)
	assert.Equal(suite.T(), "user", auth.User.Role)
	assert.NotContains(suite.T(), w.Body.String(), "password")

	// Registering the same email again conflicts
	w, _ = suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": "Carol", "email": "carol@example.com", "password": "supersecret",
	}, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w, env = suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": "C", "email": "not-an-email", "password": "123",
	}, nil)
	suite.Require().Equal(http.StatusBadRequest, w.Code)
	assert.Len(suite.T(), env.Errors, 3)

	w, _ = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "carol@example.com", "password": "wrong-password",
	}, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	w, env = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "carol@example.com", "password": "supersecret",
	}, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(env.Data, &auth)
	cookies := w.Result().Cookies()
	suite.Require().NotEmpty(cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	me := httptest.NewRecorder()
	suite.router.ServeHTTP(me, req)
	assert.Equal(suite.T(), http.StatusOK, me.Code)
	assert.Contains(suite.T(), me.Body.String(), "carol@example.com")

	// The session cookie alone also authenticates
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	me = httptest.NewRecorder()
	suite.router.ServeHTTP(me, req)
	assert.Equal(suite.T(), http.StatusOK, me.Code)

	w, _ = suite.do(http.MethodGet, "/api/v1/auth/me", nil, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *RouterTestSuite) TestProfileAndPassword() {
	w, env := suite.do(http.MethodPut, "/api/v1/auth/profile", map[string]string{"name": "Alicia"}, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "Profile updated successfully", env.Message)

	w, _ = suite.do(http.MethodPut, "/api/v1/auth/profile", map[string]string{"email": "bob@example.com"}, suite.alice)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w, _ = suite.do(http.MethodPut, "/api/v1/auth/password", map[string]string{
		"currentPassword": "wrong", "newPassword": "newsecret",
	}, suite.alice)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)

	w, _ = suite.do(http.MethodPut, "/api/v1/auth/password", map[string]string{
		"currentPassword": testutil.Password, "newPassword": "newsecret",
	}, suite.alice)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestAdminRoutesRequireAdmin() {
	w, env := suite.do(http.MethodGet, "/api/v1/auth/users", nil, suite.alice)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.False(suite.T(), env.Success)

	w, env = suite.do(http.MethodGet, "/api/v1/auth/users", nil, suite.admin)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Require().NotNil(env.Count)
	assert.Equal(suite.T(), 3, *env.Count)

	path := fmt.Sprintf("/api/v1/auth/users/%s/role", suite.alice.ID)
	w, _ = suite.do(http.MethodPut, path, map[string]string{"role": "admin"}, suite.alice)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w, _ = suite.do(http.MethodPut, path, map[string]string{"role": "owner"}, suite.admin)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w, _ = suite.do(http.MethodPut, path, map[string]string{"role": "admin"}, suite.admin)
	suite.Require().Equal(http.StatusOK, w.Code)

	// The promotion applies to the next request
	w, _ = suite.do(http.MethodGet, "/api/v1/auth/users", nil, suite.alice)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestListTasks_ScopingAndPagination() {
	for i := 0; i < 3; i++ {
		testutil.CreateTask(suite.T(), suite.db, suite.alice, fmt.Sprintf("alice-%d", i))
	}
	testutil.CreateTask(suite.T(), suite.db, suite.bob, "bob-0")

	w, env := suite.do(http.MethodGet, "/api/v1/tasks?user="+suite.bob.ID+"&limit=2", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), 2, *env.Count)
	assert.Equal(suite.T(), int64(3), *env.Total)
	suite.Require().NotNil(env.Pagination)
	suite.Require().NotNil(env.Pagination.Next)
	assert.Equal(suite.T(), 2, env.Pagination.Next.Page)
	assert.Equal(suite.T(), 2, env.Pagination.Next.Limit)
	assert.Nil(suite.T(), env.Pagination.Prev)

	var tasks []taskBody
	suite.decode(env.Data, &tasks)
	for _, task := range tasks {
		assert.Equal(suite.T(), suite.alice.ID, task.User.ID)
		assert.Equal(suite.T(), "Alice", task.User.Name)
		assert.Equal(suite.T(), "alice@example.com", task.User.Email)
	}

	w, env = suite.do(http.MethodGet, "/api/v1/tasks?page=2&limit=2", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), 1, *env.Count)
	assert.Nil(suite.T(), env.Pagination.Next)
	suite.Require().NotNil(env.Pagination.Prev)
	assert.Equal(suite.T(), 1, env.Pagination.Prev.Page)

	w, env = suite.do(http.MethodGet, "/api/v1/tasks?user="+suite.bob.ID, nil, suite.admin)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), int64(1), *env.Total)

	w, _ = suite.do(http.MethodGet, "/api/v1/tasks?status=done", nil, suite.alice)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *RouterTestSuite) TestTaskAccess_NotFoundVersusForbidden() {
	task := testutil.CreateTask(suite.T(), suite.db, suite.bob, "Bob's")

	w, env := suite.do(http.MethodGet, "/api/v1/tasks/00000000-0000-0000-0000-000000000000", nil, suite.alice)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "Task not found", env.Message)

	w, env = suite.do(http.MethodGet, "/api/v1/tasks/"+task.ID, nil, suite.alice)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "Not authorized to access this task", env.Message)

	w, env = suite.do(http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]string{"title": "x"}, suite.alice)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "Not authorized to update this task", env.Message)

	w, env = suite.do(http.MethodDelete, "/api/v1/tasks/"+task.ID, nil, suite.alice)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "Not authorized to delete this task", env.Message)

	w, env = suite.do(http.MethodPatch, "/api/v1/tasks/"+task.ID+"/archive", nil, suite.alice)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Equal(suite.T(), "Not authorized to archive this task", env.Message)

	w, _ = suite.do(http.MethodGet, "/api/v1/tasks/"+task.ID, nil, suite.admin)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestCreateTask() {
	w, env := suite.do(http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":       "Ship release",
		"description": "Tag and publish",
		"priority":    "high",
	}, suite.alice)
	suite.Require().Equal(http.StatusCreated, w.Code)
	assert.Equal(suite.T(), "Task created successfully", env.Message)

	var task taskBody
	suite.decode(env.Data, &task)
	assert.Equal(suite.T(), "pending", task.Status)
	assert.Equal(suite.T(), "high", task.Priority)
	assert.Equal(suite.T(), suite.alice.ID, task.User.ID)
	assert.Nil(suite.T(), task.DueDate)

	w, env = suite.do(http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":       "Too late",
		"description": "In the past",
		"dueDate":     time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}, suite.alice)
	suite.Require().Equal(http.StatusBadRequest, w.Code)
	suite.Require().Len(env.Errors, 1)
	assert.Equal(suite.T(), "dueDate", env.Errors[0].Field)
	assert.Equal(suite.T(), "Due date must be in the future", env.Errors[0].Message)

	w, env = suite.do(http.MethodPost, "/api/v1/tasks", map[string]any{
		"title":  "",
		"status": "done",
	}, suite.alice)
	suite.Require().Equal(http.StatusBadRequest, w.Code)
	assert.Len(suite.T(), env.Errors, 3)
}

func (suite *RouterTestSuite) TestCreateTask_AdminAssignment() {
	w, env := suite.do(http.MethodPost, "/api/v1/tasks", map[string]any{
		"title": "For Bob", "description": "Assigned", "assignTo": suite.bob.ID,
	}, suite.admin)
	suite.Require().Equal(http.StatusCreated, w.Code)

	var task taskBody
	suite.decode(env.Data, &task)
	assert.Equal(suite.T(), suite.bob.ID, task.User.ID)
	suite.Require().NotNil(task.AssignedBy)
	assert.Equal(suite.T(), suite.admin.ID, *task.AssignedBy)

	w, env = suite.do(http.MethodPost, "/api/v1/tasks", map[string]any{
		"title": "For nobody", "description": "Assigned", "assignTo": "00000000-0000-0000-0000-000000000000",
	}, suite.admin)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "User to assign task not found", env.Message)
}

func (suite *RouterTestSuite) TestUpdateTask_IgnoresOwnershipFields() {
	task := testutil.CreateTask(suite.T(), suite.db, suite.alice, "Mine")

	w, env := suite.do(http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]any{
		"title":      "Still mine",
		"user":       suite.bob.ID,
		"assignedBy": suite.admin.ID,
		"dueDate":    time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	}, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "Task updated successfully", env.Message)

	var updated taskBody
	suite.decode(env.Data, &updated)
	assert.Equal(suite.T(), "Still mine", updated.Title)
	assert.Equal(suite.T(), suite.alice.ID, updated.User.ID)
	assert.Nil(suite.T(), updated.AssignedBy)
	assert.NotNil(suite.T(), updated.DueDate)

	// An explicit null clears the due date
	w, env = suite.do(http.MethodPut, "/api/v1/tasks/"+task.ID, `{"dueDate":null}`, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.decode(env.Data, &updated)
	assert.Nil(suite.T(), updated.DueDate)

	w, _ = suite.do(http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]any{
		"dueDate": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	}, suite.alice)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *RouterTestSuite) TestArchiveDeleteAndStats() {
	task := testutil.CreateTask(suite.T(), suite.db, suite.alice, "Archive me")
	testutil.CreateTask(suite.T(), suite.db, suite.alice, "Late", testutil.WithDueDate(time.Now().Add(-time.Hour)))

	w, env := suite.do(http.MethodPatch, "/api/v1/tasks/"+task.ID+"/archive", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "Task archived successfully", env.Message)

	w, env = suite.do(http.MethodGet, "/api/v1/tasks", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), int64(1), *env.Total)

	w, env = suite.do(http.MethodGet, "/api/v1/tasks?includeArchived=true", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), int64(2), *env.Total)

	w, env = suite.do(http.MethodGet, "/api/v1/tasks/stats", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	var stats struct {
		Total    int64            `json:"total"`
		Overdue  int64            `json:"overdue"`
		ByStatus map[string]int64 `json:"byStatus"`
	}
	suite.decode(env.Data, &stats)
	assert.Equal(suite.T(), int64(2), stats.Total)
	assert.Equal(suite.T(), int64(1), stats.Overdue)
	assert.Equal(suite.T(), map[string]int64{"pending": 2}, stats.ByStatus)

	w, env = suite.do(http.MethodPatch, "/api/v1/tasks/"+task.ID+"/archive", nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "Task unarchived successfully", env.Message)

	w, env = suite.do(http.MethodDelete, "/api/v1/tasks/"+task.ID, nil, suite.alice)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "Task deleted successfully", env.Message)

	w, _ = suite.do(http.MethodGet, "/api/v1/tasks/"+task.ID, nil, suite.alice)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *RouterTestSuite) TestSuggestWithoutAIKey() {
	w, env := suite.do(http.MethodPost, "/api/v1/tasks/suggest", map[string]string{"text": "buy milk"}, suite.alice)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	assert.False(suite.T(), env.Success)
}

func (suite *RouterTestSuite) TestMetricsEndpoint() {
	suite.do(http.MethodGet, "/health", nil, nil)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), `http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func TestNewRouter_StorageFailureIsGeneric500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("dial tcp 10.0.0.5:3306: connection refused"))

	router := NewRouter(Deps{
		Logger: logging.New(io.Discard, "error"),
		Store:  database.NewGormStore(db),
		Tokens: services.NewTokenManager("secret", time.Hour),
	})

	body := `{"name":"Dave","email":"dave@example.com","password":"supersecret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"code":"INTERNAL_ERROR","message":"Server Error"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
