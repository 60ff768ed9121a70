package entity

import "time"

// MaxOtpAttempts bounds the total number of code comparisons per OTP row.
const MaxOtpAttempts = 3

// OtpTTL is the lifetime of a verification code.
const OtpTTL = 5 * time.Minute

// EmailVerificationOtp is a short-lived 6-digit code proving control of an
// email address. At most one row per (user, email) is active at a time:
// generation invalidates prior active rows before inserting a new one.
type EmailVerificationOtp struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_otps_user_email" json:"user_id"`
	Email      string     `gorm:"size:255;not null;index:idx_otps_user_email" json:"email"`
	OtpCode    string     `gorm:"size:6;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	Attempts   int        `gorm:"not null;default:0" json:"attempts"`
	VerifiedAt *time.Time `gorm:"index" json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (EmailVerificationOtp) TableName() string {
	return "email_verification_otps"
}

// IsExpired reports whether the code lifetime has elapsed.
func (o *EmailVerificationOtp) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// IsVerified reports whether the code was consumed (or invalidated by a
// newer generation — both set verified_at).
func (o *EmailVerificationOtp) IsVerified() bool {
	return o.VerifiedAt != nil
}

// HasExceededAttempts reports whether the attempt budget is spent.
func (o *EmailVerificationOtp) HasExceededAttempts() bool {
	return o.Attempts >= MaxOtpAttempts
}
