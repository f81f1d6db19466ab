package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referral-shop/internal/auth"
	"referral-shop/internal/services"
	applog "referral-shop/pkg/logger"
)

// TokenRevoker stores logged-out tokens until they expire
type TokenRevoker interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	revoker     TokenRevoker
}

// NewAuthHandler creates a new AuthHandler. revoker may be nil, in which case
// logout only tells the client to drop its token.
func NewAuthHandler(authService *services.AuthService, revoker TokenRevoker) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		revoker:     revoker,
	}
}

type registerRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=50"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	ReferralCode string `json:"referralCode" binding:"omitempty,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account
// POST /api/v2/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, "User registered successfully", result)
}

// Login authenticates with email and password
// POST /api/v2/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Login successful", result)
}

// Logout revokes the caller's token
// POST /api/v2/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token, expiresAt, ok := auth.GetToken(c)
	if ok && h.revoker != nil {
		if err := h.revoker.Add(c.Request.Context(), token, time.Until(expiresAt)); err != nil {
			applog.Log.Error("failed to revoke token", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Failed to logout")
			return
		}
	}

	respondSuccess(c, http.StatusOK, "Logged out successfully", nil)
}

// GetMe returns the current user's profile
// GET /api/v2/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "User retrieved successfully", gin.H{"user": user})
}

// RefreshToken issues a new token for the current user
// POST /api/v2/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.authService.RefreshToken(c.Request.Context(), userID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, "Token refreshed successfully", gin.H{"token": result.Token})
}
