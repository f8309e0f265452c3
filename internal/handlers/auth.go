package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskhub-api/internal/constants"
	"github.com/yukikurage/taskhub-api/internal/dto"
	apierrors "github.com/yukikurage/taskhub-api/internal/errors"
	"github.com/yukikurage/taskhub-api/internal/middleware"
	"github.com/yukikurage/taskhub-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register creates an account and returns a token for it.
// Expects ValidateBody[dto.RegisterRequest].
func (h *AuthHandler) Register(c *gin.Context) {
	req, ok := middleware.GetPayload[dto.RegisterRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.OK(dto.AuthResponse{
		Token: token,
		User:  dto.ToUserDTO(*user),
	}))
}

// Login authenticates a user, returns a token and initializes the session.
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := middleware.GetPayload[dto.LoginRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	if _, mounted := c.Get(sessions.DefaultKey); mounted {
		session := sessions.Default(c)
		session.Set(constants.ContextKeyUserID, user.ID)
		if err := session.Save(); err != nil {
			_ = c.Error(err)
			return
		}
	}

	c.JSON(http.StatusOK, dto.OK(dto.AuthResponse{
		Token: token,
		User:  dto.ToUserDTO(*user),
	}))
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if _, mounted := c.Get(sessions.DefaultKey); mounted {
		session := sessions.Default(c)
		session.Clear()
		session.Options(sessions.Options{Path: "/", MaxAge: -1})
		if err := session.Save(); err != nil {
			_ = c.Error(err)
			return
		}
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Logged out successfully", nil))
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.ToUserDTO(*user)))
}

// UpdateProfile changes the caller's name and/or email.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	req, ok := middleware.GetPayload[dto.UpdateProfileRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, services.UpdateProfileInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Profile updated successfully", dto.ToUserDTO(*user)))
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}
	req, ok := middleware.GetPayload[dto.ChangePasswordRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("Password updated successfully", nil))
}

// ListUsers returns every account. Admin only.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	count := len(users)
	c.JSON(http.StatusOK, dto.Response{
		Success: true,
		Count:   &count,
		Data:    dto.ToUserDTOs(users),
	})
}

// UpdateRole changes the role of the user named in the path. Admin only.
func (h *AuthHandler) UpdateRole(c *gin.Context) {
	req, ok := middleware.GetPayload[dto.UpdateRoleRequest](c)
	if !ok {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.UpdateRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OKWithMessage("User role updated successfully", dto.ToUserDTO(*user)))
}

func respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.Conflict(c, "User already exists with this email")
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c, "Invalid credentials")
	case errors.Is(err, services.ErrIncorrectPassword):
		apierrors.InvalidCredentials(c, "Current password is incorrect")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, "Invalid role")
	default:
		_ = c.Error(err)
	}
}
