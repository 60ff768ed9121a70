package service

import "errors"

// Auth and verification flow specific errors used by handlers for stable error_type mapping.
var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrEmailAlreadyExists   = errors.New("email_already_exists")
	ErrEmailNotVerified     = errors.New("email_not_verified")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrSchoolNotSubmitted   = errors.New("school_not_submitted")
	ErrSchoolAlreadyDecided = errors.New("school_already_decided")
	ErrOnboardingIncomplete = errors.New("onboarding_incomplete")
	ErrTermsNotAccepted     = errors.New("terms_not_accepted")
)

// OTP validation result codes. They are part of the API contract and
// are returned verbatim in response bodies.
const (
	OtpCodeVerified            = "OTP_VERIFIED"
	OtpCodeNotFound            = "OTP_NOT_FOUND"
	OtpCodeExpired             = "OTP_EXPIRED"
	OtpCodeInvalid             = "INVALID_OTP"
	OtpCodeMaxAttemptsExceeded = "MAX_ATTEMPTS_EXCEEDED"
)
