package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/service"
)

// EmailVerificationHandler serves the OTP confirmation endpoints.
type EmailVerificationHandler struct {
	authService *service.AuthService
	otpService  *service.OtpService
}

func NewEmailVerificationHandler(authService *service.AuthService, otpService *service.OtpService) *EmailVerificationHandler {
	return &EmailVerificationHandler{
		authService: authService,
		otpService:  otpService,
	}
}

// VerifyOtpRequest carries the submitted code.
type VerifyOtpRequest struct {
	Code string `json:"code" binding:"required,len=6"`
}

// VerifyOtp confirms a verification code for the authenticated user.
func (h *EmailVerificationHandler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code must be 6 digits", "error_type": "validation_error"})
		return
	}

	userID := c.MustGet("user_id").(uint)

	result, payload, err := h.authService.VerifyEmail(c.Request.Context(), userID, req.Code)
	if err != nil {
		log.Printf("[EmailVerificationHandler] Verify error for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
		return
	}

	if !result.Success {
		status := http.StatusUnprocessableEntity
		if result.Code == service.OtpCodeMaxAttemptsExceeded {
			status = http.StatusTooManyRequests
		}
		response := gin.H{
			"success":    false,
			"error":      result.Message,
			"error_type": result.Code,
		}
		if result.Code == service.OtpCodeInvalid {
			response["remaining_attempts"] = result.RemainingAttempts
		}
		c.JSON(status, response)
		return
	}

	response := gin.H{
		"success": true,
		"message": result.Message,
	}
	if payload != nil {
		response["user"] = payload.User
		response["token"] = payload.Token
		response["token_type"] = "Bearer"
		response["abilities"] = payload.Abilities
	}
	c.JSON(http.StatusOK, response)
}

// Resend invalidates outstanding codes and emails a fresh one.
func (h *EmailVerificationHandler) Resend(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	sent, err := h.authService.ResendCode(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[EmailVerificationHandler] Resend error for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
		return
	}

	if !sent {
		user, _ := c.Get("user")
		if u, ok := user.(*entity.User); ok && u.HasVerifiedEmail() {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email already verified."})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send verification code", "error_type": "email_send_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent."})
}

// Stats reports OTP counters, intended for operators.
func (h *EmailVerificationHandler) Stats(c *gin.Context) {
	stats, err := h.otpService.Stats(c.Request.Context())
	if err != nil {
		log.Printf("[EmailVerificationHandler] Stats error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
