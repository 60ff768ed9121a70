package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/school-api/internal/domain/entity"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
)

type authServiceFixture struct {
	svc        *AuthService
	userRepo   *MockUserRepository
	otpRepo    *MockOtpRepository
	tokenRepo  *MockAccessTokenRepository
	schoolRepo *MockSchoolRepository
	emails     *MockEmailService
}

func newAuthServiceFixture(t *testing.T) (*authServiceFixture, sqlmock.Sqlmock) {
	t.Helper()

	db, sqlMock := newTestDB(t)
	userRepo := new(MockUserRepository)
	otpRepo := new(MockOtpRepository)
	tokenRepo := new(MockAccessTokenRepository)
	schoolRepo := new(MockSchoolRepository)
	emails := new(MockEmailService)
	store := new(MockStorage)

	otps, err := NewOtpService(db, otpRepo, userRepo, entity.OtpTTL)
	require.NoError(t, err)
	tokens, err := NewTokenService(tokenRepo, userRepo)
	require.NoError(t, err)
	onboarding, err := NewOnboardingService(db, schoolRepo, store)
	require.NoError(t, err)
	svc, err := NewAuthService(userRepo, otps, tokens, emails, onboarding)
	require.NoError(t, err)

	return &authServiceFixture{
		svc:        svc,
		userRepo:   userRepo,
		otpRepo:    otpRepo,
		tokenRepo:  tokenRepo,
		schoolRepo: schoolRepo,
		emails:     emails,
	}, sqlMock
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hashed)
}

// ============================================================================
// Регистрация
// ============================================================================

func TestAuthService_Register_Success(t *testing.T) {
	f, sqlMock := newAuthServiceFixture(t)

	f.userRepo.On("GetByEmail", "new@school.test").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("Create", mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) { args.Get(0).(*entity.User).ID = 1 }).
		Return(nil)
	f.userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, Name: "New Admin", Email: "new@school.test", Role: entity.RoleAdmin}, nil)

	f.otpRepo.On("InvalidateActive", mock.Anything, uint(1), "new@school.test").Return(int64(0), nil)
	f.otpRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.EmailVerificationOtp")).
		Run(func(args mock.Arguments) { args.Get(1).(*entity.EmailVerificationOtp).ID = 10 }).
		Return(nil)
	f.emails.On("SendVerificationCode", mock.Anything, "new@school.test", "New Admin", mock.Anything, "email-verify:1:10").Return(nil)
	f.tokenRepo.On("Create", mock.AnythingOfType("*entity.AccessToken")).
		Run(func(args mock.Arguments) { args.Get(0).(*entity.AccessToken).ID = 100 }).
		Return(nil)

	expectTx(sqlMock)

	payload, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "New Admin",
		Email:    "  NEW@school.test ",
		Password: "password123",
	})

	require.NoError(t, err, "Регистрация должна быть успешной")
	assert.Equal(t, "new@school.test", payload.User.Email, "Email нормализуется к нижнему регистру")
	assert.Equal(t, entity.RoleAdmin, payload.User.Role)
	assert.True(t, payload.NeedsVerification)
	assert.True(t, payload.OtpSent)
	assert.Contains(t, payload.Abilities, entity.AbilityEmailVerification)
	assert.NotContains(t, payload.Abilities, "role:admin", "До верификации полный токен не выдаётся")
	f.userRepo.AssertExpectations(t)
	f.emails.AssertExpectations(t)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	f.userRepo.On("GetByEmail", "existing@school.test").Return(&entity.User{ID: 1, Email: "existing@school.test"}, nil)

	payload, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Someone",
		Email:    "existing@school.test",
		Password: "password123",
	})

	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
	assert.Nil(t, payload)
	f.userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_Register_ShortPassword(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Someone",
		Email:    "new@school.test",
		Password: "short",
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAuthService_Register_EmailSendFailureKeepsAccount(t *testing.T) {
	f, sqlMock := newAuthServiceFixture(t)

	f.userRepo.On("GetByEmail", "new@school.test").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("Create", mock.Anything).
		Run(func(args mock.Arguments) { args.Get(0).(*entity.User).ID = 1 }).
		Return(nil)
	f.userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, Name: "New Admin", Email: "new@school.test", Role: entity.RoleAdmin}, nil)

	f.otpRepo.On("InvalidateActive", mock.Anything, uint(1), "new@school.test").Return(int64(0), nil)
	f.otpRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(*entity.EmailVerificationOtp).ID = 10 }).
		Return(nil)
	f.emails.On("SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)
	f.tokenRepo.On("Create", mock.Anything).Return(nil)

	expectTx(sqlMock)

	payload, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "New Admin",
		Email:    "new@school.test",
		Password: "password123",
	})

	require.NoError(t, err, "Сбой отправки письма не отменяет регистрацию")
	assert.False(t, payload.OtpSent)
	assert.True(t, payload.NeedsVerification)
}

// ============================================================================
// Вход
// ============================================================================

func TestAuthService_Login_WrongPassword(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	f.userRepo.On("GetByEmail", "admin@school.test").Return(&entity.User{
		ID:       1,
		Email:    "admin@school.test",
		Password: hashPassword(t, "correct-password"),
		Role:     entity.RoleAdmin,
	}, nil)

	_, err := f.svc.Login(context.Background(), "admin@school.test", "wrong-password")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	f.userRepo.On("GetByEmail", "ghost@school.test").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.Login(context.Background(), "ghost@school.test", "whatever")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnverifiedGetsVerificationToken(t *testing.T) {
	f, sqlMock := newAuthServiceFixture(t)

	f.userRepo.On("GetByEmail", "admin@school.test").Return(&entity.User{
		ID:       1,
		Name:     "Admin",
		Email:    "admin@school.test",
		Password: hashPassword(t, "password123"),
		Role:     entity.RoleAdmin,
	}, nil)
	f.userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, Name: "Admin", Email: "admin@school.test", Role: entity.RoleAdmin}, nil)

	f.otpRepo.On("InvalidateActive", mock.Anything, uint(1), "admin@school.test").Return(int64(1), nil)
	f.otpRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(*entity.EmailVerificationOtp).ID = 11 }).
		Return(nil)
	f.emails.On("SendVerificationCode", mock.Anything, "admin@school.test", "Admin", mock.Anything, "email-verify:1:11").Return(nil)
	f.tokenRepo.On("Create", mock.Anything).Return(nil)

	expectTx(sqlMock)

	payload, err := f.svc.Login(context.Background(), "admin@school.test", "password123")

	require.NoError(t, err)
	assert.True(t, payload.NeedsVerification)
	assert.Contains(t, payload.Abilities, entity.AbilityEmailVerification)
	assert.NotContains(t, payload.Abilities, "role:admin")
	assert.Nil(t, payload.Onboarding)
}

func TestAuthService_Login_VerifiedAdminGetsOnboarding(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	verifiedAt := time.Now().Add(-time.Hour)
	f.userRepo.On("GetByEmail", "admin@school.test").Return(&entity.User{
		ID:              1,
		Name:            "Admin",
		Email:           "admin@school.test",
		Password:        hashPassword(t, "password123"),
		Role:            entity.RoleAdmin,
		EmailVerifiedAt: &verifiedAt,
	}, nil)
	f.tokenRepo.On("Create", mock.Anything).Return(nil)
	f.schoolRepo.On("GetByOwner", uint(1)).Return(nil, apperrors.ErrNotFound)

	payload, err := f.svc.Login(context.Background(), "admin@school.test", "password123")

	require.NoError(t, err)
	assert.False(t, payload.NeedsVerification)
	assert.Contains(t, payload.Abilities, "role:admin")
	require.NotNil(t, payload.Onboarding, "Верифицированный админ получает статус онбординга")
	require.NotNil(t, payload.Onboarding.State.CurrentStep)
	assert.Equal(t, 1, *payload.Onboarding.State.CurrentStep)
}

func TestAuthService_Login_SuperAdminSkipsOnboarding(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	verifiedAt := time.Now().Add(-time.Hour)
	f.userRepo.On("GetByEmail", "root@school.test").Return(&entity.User{
		ID:              2,
		Email:           "root@school.test",
		Password:        hashPassword(t, "password123"),
		Role:            entity.RoleSuperAdmin,
		EmailVerifiedAt: &verifiedAt,
	}, nil)
	f.tokenRepo.On("Create", mock.Anything).Return(nil)

	payload, err := f.svc.Login(context.Background(), "root@school.test", "password123")

	require.NoError(t, err)
	assert.Contains(t, payload.Abilities, "role:super_admin")
	assert.Nil(t, payload.Onboarding)
	f.schoolRepo.AssertNotCalled(t, "GetByOwner", mock.Anything)
}

// ============================================================================
// Подтверждение email
// ============================================================================

func TestAuthService_VerifyEmail_AlreadyVerifiedShortCircuits(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	verifiedAt := time.Now().Add(-time.Hour)
	f.userRepo.On("GetByID", uint(1)).Return(&entity.User{
		ID:              1,
		Email:           "admin@school.test",
		EmailVerifiedAt: &verifiedAt,
	}, nil)

	result, payload, err := f.svc.VerifyEmail(context.Background(), 1, "123456")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Email already verified.", result.Message)
	assert.Nil(t, payload, "Новый токен не выдаётся при повторной верификации")
	f.otpRepo.AssertNotCalled(t, "GetLatestActiveLocked", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthService_VerifyEmail_Success(t *testing.T) {
	f, sqlMock := newAuthServiceFixture(t)

	unverified := &entity.User{ID: 1, Name: "Admin", Email: "admin@school.test", Role: entity.RoleAdmin}
	verifiedAt := time.Now()
	verified := &entity.User{ID: 1, Name: "Admin", Email: "admin@school.test", Role: entity.RoleAdmin, EmailVerifiedAt: &verifiedAt}

	f.userRepo.On("GetByID", uint(1)).Return(unverified, nil).Once()
	f.otpRepo.On("GetLatestActiveLocked", mock.Anything, uint(1), "admin@school.test").Return(&entity.EmailVerificationOtp{
		ID:        10,
		UserID:    1,
		Email:     "admin@school.test",
		OtpCode:   "123456",
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	f.otpRepo.On("IncrementAttempts", mock.Anything, uint(10)).Return(nil)
	f.otpRepo.On("MarkVerified", mock.Anything, uint(10)).Return(nil)
	f.userRepo.On("UpdateProfile", uint(1), mock.MatchedBy(func(updates map[string]interface{}) bool {
		_, ok := updates["email_verified_at"]
		return ok
	})).Return(nil)
	f.tokenRepo.On("DeleteForUser", uint(1)).Return(int64(1), nil)
	f.tokenRepo.On("Create", mock.Anything).Return(nil)
	f.userRepo.On("GetByID", uint(1)).Return(verified, nil).Once()

	expectTx(sqlMock)

	result, payload, err := f.svc.VerifyEmail(context.Background(), 1, "123456")

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, payload)
	assert.Contains(t, payload.Abilities, "role:admin")
	assert.NotNil(t, payload.User.EmailVerifiedAt)
	f.tokenRepo.AssertCalled(t, "DeleteForUser", uint(1))
}

func TestAuthService_VerifyEmail_WrongCodeNoToken(t *testing.T) {
	f, sqlMock := newAuthServiceFixture(t)

	f.userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, Email: "admin@school.test"}, nil)
	f.otpRepo.On("GetLatestActiveLocked", mock.Anything, uint(1), "admin@school.test").Return(&entity.EmailVerificationOtp{
		ID:        10,
		UserID:    1,
		Email:     "admin@school.test",
		OtpCode:   "123456",
		ExpiresAt: time.Now().Add(time.Minute),
	}, nil)
	f.otpRepo.On("IncrementAttempts", mock.Anything, uint(10)).Return(nil)

	expectTx(sqlMock)

	result, payload, err := f.svc.VerifyEmail(context.Background(), 1, "654321")

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, payload)
	f.userRepo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
	f.tokenRepo.AssertNotCalled(t, "Create", mock.Anything)
}

// ============================================================================
// Повторная отправка кода
// ============================================================================

func TestAuthService_ResendCode_AlreadyVerified(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	verifiedAt := time.Now()
	f.userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, EmailVerifiedAt: &verifiedAt}, nil)

	sent, err := f.svc.ResendCode(context.Background(), 1)

	require.NoError(t, err)
	assert.False(t, sent)
	f.otpRepo.AssertNotCalled(t, "InvalidateActive", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// Выход
// ============================================================================

func TestAuthService_Logout_RevokesOnlyCurrentToken(t *testing.T) {
	f, _ := newAuthServiceFixture(t)

	f.tokenRepo.On("Delete", uint(100)).Return(nil)

	require.NoError(t, f.svc.Logout(context.Background(), 100))
	f.tokenRepo.AssertCalled(t, "Delete", uint(100))
	f.tokenRepo.AssertNotCalled(t, "DeleteForUser", mock.Anything)
}
