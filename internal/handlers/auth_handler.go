package handlers

import (
	"net/http"

	"codebot/internal/config"
	"codebot/internal/middleware"
	"codebot/internal/models"
	"codebot/internal/observability"
	"codebot/internal/services"
	contextutils "codebot/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	userService services.UserServiceInterface
	config      *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		config:      cfg,
		logger:      logger,
	}
}

// Signup handles account creation requests
func (h *AuthHandler) Signup(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "signup")
	defer observability.FinishSpan(span, nil)

	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}
	if err := contextutils.ValidateStruct(&req); err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		attribute.String("auth.username", req.Username),
		attribute.Bool("auth.email_provided", req.Email != ""),
	)

	user, err := h.userService.CreateUserWithPassword(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "Signup failed", map[string]interface{}{"username": req.Username, "error": err.Error()})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("user.id", user.ID))

	// Log the new user in immediately
	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)
	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login handles user login requests
func (h *AuthHandler) Login(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	span.SetAttributes(
		attribute.String("auth.email", req.Email),
		attribute.Bool("auth.password_provided", req.Password != ""),
	)

	// Accounts are keyed by username internally; the login form asks for email
	user, err := h.userService.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Login lookup failed", err, map[string]interface{}{"email": req.Email})
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}
	if user == nil {
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}

	user, err = h.userService.AuthenticateUser(c.Request.Context(), user.Username, req.Password)
	if err != nil || user == nil {
		h.logger.Warn(c.Request.Context(), "Authentication failed", map[string]interface{}{"email": req.Email})
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", user.ID),
		attribute.String("user.username", user.Username),
	)

	if err := h.userService.UpdateLastActive(c.Request.Context(), user.ID); err != nil {
		// Log error but don't fail login
		h.logger.Warn(c.Request.Context(), "Failed to update last active for user", map[string]interface{}{"user_id": user.ID, "error": err.Error()})
	}

	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)

	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

// Logout handles user logout requests
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	if userID := session.Get(middleware.UserIDKey); userID != nil {
		if id, ok := userID.(int); ok {
			span.SetAttributes(attribute.Int("user.id", id))
		}
	}

	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

// Me returns the currently authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "me")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	span.SetAttributes(attribute.Int("user.id", userID))

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Error getting user by ID", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, contextutils.ErrInternalError)
		return
	}
	if user == nil {
		// Stale session for a deleted account
		session := sessions.Default(c)
		session.Clear()
		if err := session.Save(); err != nil {
			h.logger.Error(c.Request.Context(), "Error saving session", err, nil)
		}
		HandleAppError(c, contextutils.ErrSessionExpired)
		return
	}

	if err := h.userService.UpdateLastActive(c.Request.Context(), user.ID); err != nil {
		h.logger.Warn(c.Request.Context(), "Error updating last active", map[string]interface{}{"user_id": user.ID, "error": err.Error()})
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdatePreferredTrack lets the authenticated user switch tutoring tracks
func (h *AuthHandler) UpdatePreferredTrack(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "update_preferred_track")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req struct {
		Track string `json:"track" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", userID),
		observability.AttributeTrack(req.Track),
	)

	if err := h.userService.UpdatePreferredTrack(c.Request.Context(), userID, models.Track(req.Track)); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
