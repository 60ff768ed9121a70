package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
)

// RegisterInput carries a new account registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthPayload is what the client receives after register/login/verify.
type AuthPayload struct {
	User              *entity.User       `json:"user"`
	Token             string             `json:"token,omitempty"`
	Abilities         entity.AbilityList `json:"abilities,omitempty"`
	NeedsVerification bool               `json:"needs_verification"`
	OtpSent           bool               `json:"otp_sent,omitempty"`
	Onboarding        *OnboardingStatus  `json:"onboarding,omitempty"`
}

// AuthService orchestrates registration, login, logout and the email
// verification handshake.
type AuthService struct {
	userRepo   repository.UserRepository
	otps       *OtpService
	tokens     *TokenService
	emails     EmailService
	onboarding *OnboardingService
}

func NewAuthService(
	userRepo repository.UserRepository,
	otps *OtpService,
	tokens *TokenService,
	emails EmailService,
	onboarding *OnboardingService,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if otps == nil {
		return nil, fmt.Errorf("otp service is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if emails == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if onboarding == nil {
		return nil, fmt.Errorf("onboarding service is required")
	}
	return &AuthService{
		userRepo:   userRepo,
		otps:       otps,
		tokens:     tokens,
		emails:     emails,
		onboarding: onboarding,
	}, nil
}

// Register creates an unverified admin account, sends the first OTP and
// issues a verification-only credential. A failed email send does not undo
// the registration; the client can request a resend.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthPayload, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", apperrors.ErrValidation)
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
	}

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	user := &entity.User{
		Name:     name,
		Email:    email,
		Password: input.Password,
		Role:     entity.RoleAdmin,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	otpSent := s.sendOtp(ctx, user)

	abilities := entity.AbilityList{entity.AbilityEmailVerification}
	plaintext, _, err := s.tokens.Issue(user.ID, "email-verification", abilities...)
	if err != nil {
		return nil, err
	}

	log.Printf("[AuthService] Registered user %d (%s)", user.ID, user.Email)
	return &AuthPayload{
		User:              user,
		Token:             plaintext,
		Abilities:         abilities,
		NeedsVerification: true,
		OtpSent:           otpSent,
	}, nil
}

// VerifyEmail confirms an OTP for the user. On success the account is
// marked verified, verification-only credentials are revoked and a full
// role credential is issued. Already verified accounts short-circuit to
// success without consuming anything.
func (s *AuthService) VerifyEmail(ctx context.Context, userID uint, code string) (*OtpResult, *AuthPayload, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}

	if user.HasVerifiedEmail() {
		return &OtpResult{
			Success: true,
			Code:    OtpCodeVerified,
			Message: "Email already verified.",
		}, nil, nil
	}

	result, err := s.otps.Validate(ctx, user.ID, user.Email, code)
	if err != nil {
		return nil, nil, err
	}
	if !result.Success {
		return result, nil, nil
	}

	verifiedAt := time.Now()
	if err := s.userRepo.UpdateProfile(user.ID, map[string]interface{}{
		"email_verified_at": &verifiedAt,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to mark user verified: %w", err)
	}

	if _, err := s.tokens.RevokeAll(user.ID); err != nil {
		log.Printf("[AuthService] Failed to revoke verification tokens for user %d: %v", user.ID, err)
	}

	abilities := entity.AbilityList{user.Role.TokenAbility()}
	plaintext, _, err := s.tokens.Issue(user.ID, "auth", abilities...)
	if err != nil {
		return nil, nil, err
	}

	refreshed, err := s.userRepo.GetByID(user.ID)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[AuthService] User %d verified email", user.ID)
	return result, &AuthPayload{
		User:      refreshed,
		Token:     plaintext,
		Abilities: abilities,
	}, nil
}

// ResendCode invalidates outstanding codes and emails a fresh one.
func (s *AuthService) ResendCode(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, err
	}
	if user.HasVerifiedEmail() {
		return false, nil
	}
	return s.sendOtp(ctx, user), nil
}

// Login authenticates by email and password. Unverified accounts get a
// verification-only credential and must finish the OTP handshake first.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthPayload, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	if !user.HasVerifiedEmail() {
		otpSent := s.sendOtp(ctx, user)
		abilities := entity.AbilityList{entity.AbilityEmailVerification}
		plaintext, _, err := s.tokens.Issue(user.ID, "email-verification", abilities...)
		if err != nil {
			return nil, err
		}
		return &AuthPayload{
			User:              user,
			Token:             plaintext,
			Abilities:         abilities,
			NeedsVerification: true,
			OtpSent:           otpSent,
		}, nil
	}

	abilities := entity.AbilityList{user.Role.TokenAbility()}
	plaintext, _, err := s.tokens.Issue(user.ID, "auth", abilities...)
	if err != nil {
		return nil, err
	}

	payload := &AuthPayload{
		User:      user,
		Token:     plaintext,
		Abilities: abilities,
	}

	if user.IsAdmin() && !user.IsSuperAdmin() {
		status, err := s.onboarding.Status(ctx, user.ID)
		if err != nil {
			log.Printf("[AuthService] Failed to load onboarding status for user %d: %v", user.ID, err)
		} else {
			payload.Onboarding = status
		}
	}

	log.Printf("[AuthService] User %d logged in", user.ID)
	return payload, nil
}

// Logout revokes the credential used for the current request. Other
// sessions of the same user stay valid.
func (s *AuthService) Logout(ctx context.Context, tokenID uint) error {
	return s.tokens.Revoke(tokenID)
}

func (s *AuthService) sendOtp(ctx context.Context, user *entity.User) bool {
	otp, code, err := s.otps.Generate(ctx, user.ID, user.Email)
	if err != nil {
		log.Printf("[AuthService] Failed to generate otp for user %d: %v", user.ID, err)
		return false
	}

	idempotencyKey := fmt.Sprintf("email-verify:%d:%d", user.ID, otp.ID)
	if err := s.emails.SendVerificationCode(ctx, user.Email, user.Name, code, idempotencyKey); err != nil {
		log.Printf("[AuthService] Failed to send otp email to user %d: %v", user.ID, err)
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
