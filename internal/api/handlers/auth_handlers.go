package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryzan/ryzan_service/internal/api/middleware"
	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

// IdentityService is the auth provider used by the auth and user handlers
type IdentityService interface {
	SignUp(ctx context.Context, req entities.SignUpRequest) (*entities.AuthResponse, error)
	SignIn(ctx context.Context, req entities.SignInRequest) (*entities.AuthResponse, error)
	GetSession(ctx context.Context, accessToken string) (*entities.Session, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*entities.AuthResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*entities.UserInfo, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req entities.UpdateUserRequest) (*entities.UserInfo, error)
	ResolveRecipientByPhone(ctx context.Context, phone string) (*entities.ResolvedRecipient, error)
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// SignOutRequest optionally carries the refresh token to revoke with the session
type SignOutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthHandlers serves sign-up, sign-in, session and profile endpoints
type AuthHandlers struct {
	identity IdentityService
	logger   *zap.Logger
}

// NewAuthHandlers creates a new instance of AuthHandlers
func NewAuthHandlers(identity IdentityService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{identity: identity, logger: logger}
}

// SignUp handles user registration
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body entities.SignUpRequest true "Sign-up data"
// @Success 201 {object} entities.AuthResponse
// @Failure 400 {object} entities.ErrorResponse
// @Failure 409 {object} entities.ErrorResponse
// @Router /api/v1/auth/signup [post]
func (h *AuthHandlers) SignUp(c *gin.Context) {
	var req entities.SignUpRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.identity.SignUp(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// SignIn handles password sign-in
// @Summary Sign in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body entities.SignInRequest true "Credentials"
// @Success 200 {object} entities.AuthResponse
// @Failure 401 {object} entities.ErrorResponse
// @Router /api/v1/auth/signin [post]
func (h *AuthHandlers) SignIn(c *gin.Context) {
	var req entities.SignInRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.identity.SignIn(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} entities.AuthResponse
// @Failure 401 {object} entities.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.identity.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Session returns the session behind the bearer token
// @Summary Current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entities.Session
// @Failure 401 {object} entities.ErrorResponse
// @Router /api/v1/auth/session [get]
func (h *AuthHandlers) Session(c *gin.Context) {
	session, err := h.identity.GetSession(c.Request.Context(), middleware.AccessToken(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SignOut revokes the current session
// @Summary Sign out
// @Tags auth
// @Accept json
// @Security BearerAuth
// @Param request body SignOutRequest false "Refresh token to revoke"
// @Success 204
// @Failure 401 {object} entities.ErrorResponse
// @Router /api/v1/auth/signout [post]
func (h *AuthHandlers) SignOut(c *gin.Context) {
	var req SignOutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
			return
		}
	}

	if err := h.identity.SignOut(c.Request.Context(), middleware.AccessToken(c), req.RefreshToken); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMe returns the authenticated user's profile
// @Summary Get current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entities.UserInfo
// @Router /api/v1/users/me [get]
func (h *AuthHandlers) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	info, err := h.identity.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// UpdateMe updates the authenticated user's profile
// @Summary Update current user
// @Description Updates profile fields. Metadata keys are merged; a null value removes the key.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body entities.UpdateUserRequest true "Profile changes"
// @Success 200 {object} entities.UserInfo
// @Failure 400 {object} entities.ErrorResponse
// @Router /api/v1/users/me [patch]
func (h *AuthHandlers) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req entities.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	info, err := h.identity.UpdateUser(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ResolveRecipient looks up the wallet of a registered user by phone number
// @Summary Resolve recipient by phone
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param phone query string true "E.164 phone number"
// @Success 200 {object} entities.ResolvedRecipient
// @Failure 404 {object} entities.ErrorResponse
// @Router /api/v1/users/resolve [get]
func (h *AuthHandlers) ResolveRecipient(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		SendBadRequest(c, ErrCodeValidationError, "phone is required")
		return
	}

	resolved, err := h.identity.ResolveRecipientByPhone(c.Request.Context(), phone)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resolved)
}
