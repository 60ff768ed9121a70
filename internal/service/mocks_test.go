package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
)

// ============================================================================
// Моки репозиториев и вспомогательных сервисов
// ============================================================================

// MockUserRepository реализует repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateProfile(userID uint, updates map[string]interface{}) error {
	args := m.Called(userID, updates)
	return args.Error(0)
}

// MockOtpRepository реализует repository.OtpRepository
type MockOtpRepository struct {
	mock.Mock
}

func (m *MockOtpRepository) Create(tx *gorm.DB, otp *entity.EmailVerificationOtp) error {
	args := m.Called(tx, otp)
	return args.Error(0)
}

func (m *MockOtpRepository) InvalidateActive(tx *gorm.DB, userID uint, email string) (int64, error) {
	args := m.Called(tx, userID, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOtpRepository) GetLatestActiveLocked(tx *gorm.DB, userID uint, email string) (*entity.EmailVerificationOtp, error) {
	args := m.Called(tx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EmailVerificationOtp), args.Error(1)
}

func (m *MockOtpRepository) IncrementAttempts(tx *gorm.DB, id uint) error {
	args := m.Called(tx, id)
	return args.Error(0)
}

func (m *MockOtpRepository) MarkVerified(tx *gorm.DB, id uint) error {
	args := m.Called(tx, id)
	return args.Error(0)
}

func (m *MockOtpRepository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOtpRepository) Stats(now time.Time) (*repository.OtpStats, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OtpStats), args.Error(1)
}

// MockAccessTokenRepository реализует repository.AccessTokenRepository
type MockAccessTokenRepository struct {
	mock.Mock
}

func (m *MockAccessTokenRepository) Create(token *entity.AccessToken) error {
	args := m.Called(token)
	return args.Error(0)
}

func (m *MockAccessTokenRepository) GetByID(id uint) (*entity.AccessToken, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.AccessToken), args.Error(1)
}

func (m *MockAccessTokenRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockAccessTokenRepository) DeleteForUser(userID uint) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccessTokenRepository) TouchLastUsed(id uint, at time.Time) error {
	args := m.Called(id, at)
	return args.Error(0)
}

// MockSchoolRepository реализует repository.SchoolRepository
type MockSchoolRepository struct {
	mock.Mock
}

func (m *MockSchoolRepository) GetByOwner(ownerUserID uint) (*entity.School, error) {
	args := m.Called(ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.School), args.Error(1)
}

func (m *MockSchoolRepository) GetByID(id uint) (*entity.School, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.School), args.Error(1)
}

func (m *MockSchoolRepository) GetByIDLocked(tx *gorm.DB, id uint) (*entity.School, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.School), args.Error(1)
}

func (m *MockSchoolRepository) FirstOrCreateByOwner(tx *gorm.DB, ownerUserID uint) (*entity.School, error) {
	args := m.Called(tx, ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.School), args.Error(1)
}

func (m *MockSchoolRepository) Save(tx *gorm.DB, school *entity.School) error {
	args := m.Called(tx, school)
	return args.Error(0)
}

func (m *MockSchoolRepository) UpdateFields(tx *gorm.DB, id uint, updates map[string]interface{}) error {
	args := m.Called(tx, id, updates)
	return args.Error(0)
}

func (m *MockSchoolRepository) ListByStatus(status entity.SchoolStatus) ([]entity.School, error) {
	args := m.Called(status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.School), args.Error(1)
}

func (m *MockSchoolRepository) Stats(now time.Time) (*repository.VerificationStats, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.VerificationStats), args.Error(1)
}

// MockEmailService реализует EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendVerificationCode(ctx context.Context, toEmail, name, code, idempotencyKey string) error {
	args := m.Called(ctx, toEmail, name, code, idempotencyKey)
	return args.Error(0)
}

func (m *MockEmailService) SendVerificationDecision(ctx context.Context, toEmail, name string, approved bool, notes string) error {
	args := m.Called(ctx, toEmail, name, approved, notes)
	return args.Error(0)
}

// MockStorage реализует storage.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, key, contentType string, content []byte) (string, error) {
	args := m.Called(ctx, key, contentType, content)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) FileURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// ============================================================================
// newTestDB создает *gorm.DB поверх sqlmock. Реальные запросы в тестах идут
// через мок-репозитории, sqlmock нужен только для Begin/Commit/Rollback.
// ============================================================================

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, sqlMock
}

// expectTx настраивает sqlmock на одну успешную транзакцию
func expectTx(sqlMock sqlmock.Sqlmock) {
	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()
}
