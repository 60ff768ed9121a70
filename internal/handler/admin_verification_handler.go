package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
	"github.com/yourusername/school-api/internal/service"
)

// AdminVerificationHandler serves the reviewer queue for super admins.
type AdminVerificationHandler struct {
	verificationService *service.VerificationService
}

func NewAdminVerificationHandler(verificationService *service.VerificationService) *AdminVerificationHandler {
	return &AdminVerificationHandler{verificationService: verificationService}
}

// VerifySchoolRequest carries a reviewer decision.
type VerifySchoolRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Notes  string `json:"notes" binding:"omitempty,max=2000"`
}

// PendingSchools lists schools awaiting review.
func (h *AdminVerificationHandler) PendingSchools(c *gin.Context) {
	schools, err := h.verificationService.ListPending(c.Request.Context())
	if err != nil {
		h.handleVerificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schools": schools,
		"total":   len(schools),
	})
}

// VerifySchool approves or rejects a submitted school.
func (h *AdminVerificationHandler) VerifySchool(c *gin.Context) {
	schoolID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid school ID", "error_type": "validation_error"})
		return
	}

	var req VerifySchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Action must be approve or reject", "error_type": "validation_error"})
		return
	}

	reviewerID := c.MustGet("user_id").(uint)

	school, err := h.verificationService.Decide(c.Request.Context(), service.DecideInput{
		SchoolID:   uint(schoolID),
		ReviewerID: reviewerID,
		Approve:    req.Action == "approve",
		Notes:      req.Notes,
	})
	if err != nil {
		h.handleVerificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("School %s", school.Status),
		"school":  school,
	})
}

// Stats reports review queue counters.
func (h *AdminVerificationHandler) Stats(c *gin.Context) {
	stats, err := h.verificationService.Stats(c.Request.Context())
	if err != nil {
		h.handleVerificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// ExportPending exports the review queue as CSV or XLSX.
func (h *AdminVerificationHandler) ExportPending(c *gin.Context) {
	schools, err := h.verificationService.ExportPending(c.Request.Context())
	if err != nil {
		h.handleVerificationError(c, err)
		return
	}

	filename := fmt.Sprintf("pending_schools_%s", time.Now().Format("2006-01-02"))

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		h.exportXLSX(c, schools, filename)
	default:
		h.exportCSV(c, schools, filename)
	}
}

func (h *AdminVerificationHandler) exportCSV(c *gin.Context, schools []service.PendingSchool, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM so Excel renders UTF-8 correctly
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"ID", "School", "Type", "Owner", "Email", "Phone", "Address", "Submitted", "Days pending"})

	for _, s := range schools {
		writer.Write([]string{
			strconv.FormatUint(uint64(s.ID), 10),
			sanitizeForExcel(s.Name),
			sanitizeForExcel(s.Type),
			sanitizeForExcel(s.OwnerName),
			sanitizeForExcel(s.OwnerEmail),
			sanitizeForExcel(s.Phone),
			sanitizeForExcel(s.Address),
			s.SubmittedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(s.DaysPending),
		})
	}
}

func (h *AdminVerificationHandler) exportXLSX(c *gin.Context, schools []service.PendingSchool, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Pending schools"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminVerificationHandler] Failed to create StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}

	headers := []interface{}{"ID", "School", "Type", "Owner", "Email", "Phone", "Address", "Submitted", "Days pending"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminVerificationHandler] Failed to write headers: %v", err)
	}

	for i, s := range schools {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			s.ID,
			sanitizeForExcel(s.Name),
			sanitizeForExcel(s.Type),
			sanitizeForExcel(s.OwnerName),
			sanitizeForExcel(s.OwnerEmail),
			sanitizeForExcel(s.Phone),
			sanitizeForExcel(s.Address),
			s.SubmittedAt.Format("2006-01-02 15:04"),
			s.DaysPending,
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminVerificationHandler] Failed to write row %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminVerificationHandler] Flush failed: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminVerificationHandler] Failed to write Excel to response: %v", err)
	}
}

// sanitizeForExcel guards exported cells against formula injection
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

func (h *AdminVerificationHandler) handleVerificationError(c *gin.Context, err error) {
	log.Printf("[AdminVerificationHandler] Error: %v", err)

	switch {
	case errors.Is(err, service.ErrSchoolAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": "School verification has already been decided", "error_type": "school_already_decided"})
	case errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "School is not awaiting review", "error_type": "invalid_transition"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "School not found", "error_type": "not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
