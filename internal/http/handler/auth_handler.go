package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/disasterapp/auth-service/internal/domain"
	"github.com/disasterapp/auth-service/internal/http/middleware"
	"github.com/disasterapp/auth-service/internal/service"
)

// AuthHandler exposes the auth flows over HTTP.
type AuthHandler struct {
	Auth           *service.AuthService
	GoogleClientID string
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, googleClientID string) *AuthHandler {
	return &AuthHandler{Auth: auth, GoogleClientID: googleClientID}
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// Login handles local email/password login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid login request."})
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type signupRequest struct {
	FullName        string `json:"fullName" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	AgreeToTerms    bool   `json:"agreeToTerms"`
}

// Signup registers a local account and returns tokens.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid signup request."})
		return
	}

	resp, err := h.Auth.Signup(c.Request.Context(), req.FullName, req.Email, req.Password, req.ConfirmPassword, req.AgreeToTerms)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// GoogleLogin exchanges a Google ID token for local tokens.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid Google login request."})
		return
	}

	resp, err := h.Auth.GoogleLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh rotates a refresh token into a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid refresh request."})
		return
	}

	resp, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout invalidates a stored refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid logout request."})
		return
	}

	deleted, err := h.Auth.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Validate reports whether the bearer access token is valid.
func (h *AuthHandler) Validate(c *gin.Context) {
	tokenString, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Token is invalid"})
		return
	}
	if !h.Auth.ValidateAccessToken(c.Request.Context(), tokenString) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Token is invalid"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token is valid"})
}

// Me returns the profile claims of the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	subject, ok := middleware.GetSubject(c)
	claims, claimsOK := middleware.GetAccessClaims(c)
	if !ok || !claimsOK {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId": subject,
		"name":   claims.Name,
		"email":  claims.Email,
		"roles":  claims.Roles,
	})
}

// GoogleClientIDConfig exposes the configured Google client id to the SPA.
func (h *AuthHandler) GoogleClientIDConfig(c *gin.Context) {
	if h.GoogleClientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Google Client ID not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientId": h.GoogleClientID})
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	logger := zap.L()
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidAssertion),
		errors.Is(err, domain.ErrInvalidOrExpiredToken):
		logger.Warn("authentication rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
	case errors.Is(err, domain.ErrDuplicateUser),
		errors.Is(err, domain.ErrTermsNotAccepted),
		errors.Is(err, domain.ErrPasswordMismatch):
		logger.Warn("signup precondition failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, domain.ErrConfiguration):
		logger.Error("auth misconfiguration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Authentication is not properly configured"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		logger.Error("auth store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Service temporarily unavailable"})
	default:
		logger.Error("auth service failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "An unexpected error occurred"})
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
