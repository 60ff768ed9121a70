package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestVerifySchool_InvalidSchoolID(t *testing.T) {
	handler := &AdminVerificationHandler{}

	c, w := newTestGinContext("POST", "/api/admin/schools/abc/verify", map[string]string{"action": "approve"})
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.VerifySchool(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "validation_error", resp["error_type"])
	assert.Contains(t, resp["error"], "Invalid school ID")
}

func TestVerifySchool_ValidationErrors(t *testing.T) {
	handler := &AdminVerificationHandler{}

	tests := []struct {
		name string
		body interface{}
	}{
		{
			name: "empty body",
			body: nil,
		},
		{
			name: "unknown action",
			body: map[string]string{"action": "maybe"},
		},
		{
			name: "missing action",
			body: map[string]string{"notes": "looks fine"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext("POST", "/api/admin/schools/1/verify", tt.body)
			c.Params = gin.Params{{Key: "id", Value: "1"}}
			handler.VerifySchool(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, "validation_error", resp["error_type"])
			assert.Contains(t, resp["error"], "approve or reject")
		})
	}
}

func TestVerifyOtp_ValidationErrors(t *testing.T) {
	handler := &EmailVerificationHandler{}

	tests := []struct {
		name string
		body interface{}
	}{
		{
			name: "empty body",
			body: nil,
		},
		{
			name: "code too short",
			body: map[string]string{"code": "123"},
		},
		{
			name: "code too long",
			body: map[string]string{"code": "1234567"},
		},
		{
			name: "missing code",
			body: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext("POST", "/api/email/verify-otp", tt.body)
			handler.VerifyOtp(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, "validation_error", resp["error_type"])
		})
	}
}
