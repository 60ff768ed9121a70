package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/school-api/internal/domain/entity"
)

// OtpStats describes aggregate OTP usage for monitoring.
type OtpStats struct {
	ActiveOtps       int64 `json:"active_otps"`
	ExpiredOtps      int64 `json:"expired_otps"`
	VerifiedOtps24h  int64 `json:"verified_otps_24h"`
	GeneratedOtps24h int64 `json:"generated_otps_24h"`
}

// OtpRepository persists one-time verification codes. Methods that accept a
// tx operate on that transaction when it is non-nil, so the generate and
// validate critical sections can run under a single row lock.
type OtpRepository interface {
	Create(tx *gorm.DB, otp *entity.EmailVerificationOtp) error
	// InvalidateActive marks every currently-active code for (userID, email)
	// as consumed and returns how many rows were affected.
	InvalidateActive(tx *gorm.DB, userID uint, email string) (int64, error)
	// GetLatestActiveLocked returns the most recently created active code for
	// (userID, email), locking the row FOR UPDATE when called inside a
	// transaction. Returns apperrors.ErrNotFound when no active code exists.
	GetLatestActiveLocked(tx *gorm.DB, userID uint, email string) (*entity.EmailVerificationOtp, error)
	IncrementAttempts(tx *gorm.DB, id uint) error
	MarkVerified(tx *gorm.DB, id uint) error
	// DeleteExpiredBefore removes rows whose expiry is older than cutoff
	// (out-of-band maintenance, never on the request path).
	DeleteExpiredBefore(cutoff time.Time) (int64, error)
	Stats(now time.Time) (*OtpStats, error)
}
