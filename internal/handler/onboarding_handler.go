package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
	"github.com/yourusername/school-api/internal/service"
)

// maxLogoSize bounds uploaded school logos.
const maxLogoSize = 5 << 20

// OnboardingHandler serves the school setup wizard for verified admins.
type OnboardingHandler struct {
	onboardingService *service.OnboardingService
}

func NewOnboardingHandler(onboardingService *service.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboardingService: onboardingService}
}

// Step1Request carries the basic school info. Logo arrives as a multipart
// file alongside these fields.
type Step1Request struct {
	Name        string `form:"name" binding:"required,min=2,max=200"`
	Type        string `form:"type" binding:"required,min=2,max=100"`
	Website     string `form:"website" binding:"omitempty,url"`
	Description string `form:"description" binding:"omitempty,max=2000"`
}

// Step2Request carries contact details and the terms acceptance.
type Step2Request struct {
	Email       string `json:"email" binding:"omitempty,email"`
	Phone       string `json:"phone" binding:"required,min=5,max=30"`
	Address     string `json:"address" binding:"omitempty,max=500"`
	AcceptTerms bool   `json:"accept_terms"`
}

// GetStatus reports the derived onboarding position.
func (h *OnboardingHandler) GetStatus(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	status, err := h.onboardingService.Status(c.Request.Context(), userID)
	if err != nil {
		h.handleOnboardingError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Step1 saves basic school info, with an optional logo upload.
func (h *OnboardingHandler) Step1(c *gin.Context) {
	var req Step1Request
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error", "details": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uint)

	input := service.Step1Input{
		Name:        req.Name,
		Type:        req.Type,
		Website:     req.Website,
		Description: req.Description,
	}

	if file, err := c.FormFile("logo"); err == nil {
		if file.Size > maxLogoSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Logo must not exceed 5 MB", "error_type": "validation_error"})
			return
		}
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read logo", "error_type": "validation_error"})
			return
		}
		content, err := io.ReadAll(io.LimitReader(src, maxLogoSize+1))
		src.Close()
		if err != nil || int64(len(content)) > maxLogoSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read logo", "error_type": "validation_error"})
			return
		}
		input.Logo = &service.LogoUpload{
			Filename:    file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Content:     content,
		}
	}

	status, err := h.onboardingService.Step1(c.Request.Context(), userID, input)
	if err != nil {
		h.handleOnboardingError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Step2 saves contact details. Terms must be accepted.
func (h *OnboardingHandler) Step2(c *gin.Context) {
	var req Step2Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error", "details": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uint)

	status, err := h.onboardingService.Step2(c.Request.Context(), userID, service.Step2Input{
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		AcceptTerms: req.AcceptTerms,
	})
	if err != nil {
		h.handleOnboardingError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Complete submits the school for verification.
func (h *OnboardingHandler) Complete(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	status, err := h.onboardingService.Complete(c.Request.Context(), userID)
	if err != nil {
		h.handleOnboardingError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// VerificationStatus reports where the submitted school stands in review.
func (h *OnboardingHandler) VerificationStatus(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	payload, err := h.onboardingService.VerificationStatus(c.Request.Context(), userID)
	if err != nil {
		h.handleOnboardingError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *OnboardingHandler) handleOnboardingError(c *gin.Context, err error) {
	log.Printf("[OnboardingHandler] Error: %v", err)

	switch {
	case errors.Is(err, service.ErrTermsNotAccepted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Terms of service must be accepted", "error_type": "terms_not_accepted"})
	case errors.Is(err, service.ErrOnboardingIncomplete):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Previous onboarding steps are not complete", "error_type": "onboarding_incomplete"})
	case errors.Is(err, service.ErrSchoolAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": "School verification has already been decided", "error_type": "school_already_decided"})
	case errors.Is(err, service.ErrSchoolNotSubmitted):
		c.JSON(http.StatusNotFound, gin.H{"error": "No school record found", "error_type": "school_not_submitted"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found", "error_type": "not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
