package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
)

// OtpResult describes the outcome of an OTP validation attempt. Code is a
// stable machine-readable value, Message is safe to show to the user.
type OtpResult struct {
	Success           bool   `json:"success"`
	Code              string `json:"code"`
	Message           string `json:"message"`
	RemainingAttempts int    `json:"remaining_attempts"`
}

// OtpService manages the lifecycle of email verification one-time codes.
// Generation and validation run inside database transactions so that
// concurrent requests for the same user never double-spend a code.
type OtpService struct {
	db       *gorm.DB
	otpRepo  repository.OtpRepository
	userRepo repository.UserRepository
	ttl      time.Duration
}

func NewOtpService(db *gorm.DB, otpRepo repository.OtpRepository, userRepo repository.UserRepository, ttl time.Duration) (*OtpService, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if otpRepo == nil {
		return nil, fmt.Errorf("otp repository is required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if ttl <= 0 {
		ttl = entity.OtpTTL
	}
	return &OtpService{
		db:       db,
		otpRepo:  otpRepo,
		userRepo: userRepo,
		ttl:      ttl,
	}, nil
}

// Generate invalidates any still-active codes for the user/email pair and
// creates a fresh one. The new code is returned in plaintext so the caller
// can deliver it by email.
func (s *OtpService) Generate(ctx context.Context, userID uint, email string) (*entity.EmailVerificationOtp, string, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		return nil, "", fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	code, err := generateOtpCode()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate otp code: %w", err)
	}

	otp := &entity.EmailVerificationOtp{
		UserID:    userID,
		Email:     email,
		OtpCode:   code,
		ExpiresAt: time.Now().Add(s.ttl),
		Attempts:  0,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invalidated, err := s.otpRepo.InvalidateActive(tx, userID, email)
		if err != nil {
			return err
		}
		if invalidated > 0 {
			log.Printf("[OtpService] Invalidated %d active codes for user %d", invalidated, userID)
		}
		return s.otpRepo.Create(tx, otp)
	})
	if err != nil {
		return nil, "", err
	}

	return otp, code, nil
}

// Validate checks a submitted code against the latest active one. Every
// miss increments the attempt counter, so three wrong answers exhaust the
// code even if the right one arrives afterwards.
func (s *OtpService) Validate(ctx context.Context, userID uint, email, code string) (*OtpResult, error) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return &OtpResult{
			Code:    OtpCodeInvalid,
			Message: "Invalid OTP code.",
		}, nil
	}

	var result *OtpResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		otp, err := s.otpRepo.GetLatestActiveLocked(tx, userID, email)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				result = &OtpResult{
					Code:    OtpCodeNotFound,
					Message: "No active verification code found. Please request a new one.",
				}
				return nil
			}
			return err
		}

		if otp.HasExceededAttempts() {
			result = &OtpResult{
				Code:    OtpCodeMaxAttemptsExceeded,
				Message: "Maximum verification attempts exceeded. Please request a new code.",
			}
			return nil
		}

		now := time.Now()
		if otp.IsExpired(now) {
			result = &OtpResult{
				Code:    OtpCodeExpired,
				Message: "Verification code has expired. Please request a new one.",
			}
			return nil
		}

		if err := s.otpRepo.IncrementAttempts(tx, otp.ID); err != nil {
			return err
		}
		otp.Attempts++

		if subtle.ConstantTimeCompare([]byte(otp.OtpCode), []byte(code)) != 1 {
			remaining := entity.MaxOtpAttempts - otp.Attempts
			if remaining < 0 {
				remaining = 0
			}
			result = &OtpResult{
				Code:              OtpCodeInvalid,
				Message:           "Invalid verification code.",
				RemainingAttempts: remaining,
			}
			return nil
		}

		if err := s.otpRepo.MarkVerified(tx, otp.ID); err != nil {
			return err
		}

		result = &OtpResult{
			Success: true,
			Code:    OtpCodeVerified,
			Message: "Email verified successfully.",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CleanupExpired removes codes that expired more than 24 hours ago.
func (s *OtpService) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-24 * time.Hour)
	deleted, err := s.otpRepo.DeleteExpiredBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired otps: %w", err)
	}
	if deleted > 0 {
		log.Printf("[OtpService] Cleaned up %d expired codes", deleted)
	}
	return deleted, nil
}

// Stats returns aggregate counters for monitoring.
func (s *OtpService) Stats(ctx context.Context) (*repository.OtpStats, error) {
	return s.otpRepo.Stats(time.Now())
}

func generateOtpCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
