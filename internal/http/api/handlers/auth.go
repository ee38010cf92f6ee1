package handlers

import (
	"errors"
	"net/http"

	"github.com/bicrea/gateway/internal/auth"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AuthHandler serves the login endpoint.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	MFACode  string `json:"mfaCode"`
}

// Login validates credentials and returns a signed access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	token, errLogin := h.svc.Login(c.Request.Context(), req.Email, req.Password, req.MFACode, c.ClientIP())
	if errLogin != nil {
		switch {
		case errors.Is(errLogin, auth.ErrAccountLocked):
			c.JSON(http.StatusLocked, gin.H{"error": "too many failed attempts, try again later"})
		case errors.Is(errLogin, auth.ErrInvalidMFA):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid mfa code"})
		case errors.Is(errLogin, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			log.WithError(errLogin).Error("login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
