package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
)

type OtpRepo struct {
	db *gorm.DB
}

func NewOtpRepo(db *gorm.DB) *OtpRepo {
	return &OtpRepo{db: db}
}

// conn returns the transaction when one is supplied, the base handle otherwise.
func (r *OtpRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *OtpRepo) Create(tx *gorm.DB, otp *entity.EmailVerificationOtp) error {
	return r.conn(tx).Create(otp).Error
}

func (r *OtpRepo) InvalidateActive(tx *gorm.DB, userID uint, email string) (int64, error) {
	res := r.conn(tx).Model(&entity.EmailVerificationOtp{}).
		Where("user_id = ? AND email = ? AND verified_at IS NULL AND expires_at > ?", userID, email, time.Now()).
		Update("verified_at", time.Now())
	if res.Error != nil {
		return 0, fmt.Errorf("failed to invalidate active otps: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *OtpRepo) GetLatestActiveLocked(tx *gorm.DB, userID uint, email string) (*entity.EmailVerificationOtp, error) {
	var otp entity.EmailVerificationOtp
	q := r.conn(tx).
		Where("user_id = ? AND email = ? AND verified_at IS NULL AND expires_at > ?", userID, email, time.Now()).
		Order("created_at DESC")
	if tx != nil {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&otp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest active otp: %w", err)
	}
	return &otp, nil
}

func (r *OtpRepo) IncrementAttempts(tx *gorm.DB, id uint) error {
	return r.conn(tx).Model(&entity.EmailVerificationOtp{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *OtpRepo) MarkVerified(tx *gorm.DB, id uint) error {
	now := time.Now()
	return r.conn(tx).Model(&entity.EmailVerificationOtp{}).
		Where("id = ?", id).
		Update("verified_at", now).Error
}

func (r *OtpRepo) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", cutoff).Delete(&entity.EmailVerificationOtp{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *OtpRepo) Stats(now time.Time) (*repository.OtpStats, error) {
	stats := &repository.OtpStats{}
	last24h := now.Add(-24 * time.Hour)

	model := func() *gorm.DB { return r.db.Model(&entity.EmailVerificationOtp{}) }

	if err := model().Where("verified_at IS NULL AND expires_at > ?", now).Count(&stats.ActiveOtps).Error; err != nil {
		return nil, err
	}
	if err := model().Where("verified_at IS NULL AND expires_at <= ?", now).Count(&stats.ExpiredOtps).Error; err != nil {
		return nil, err
	}
	if err := model().Where("verified_at >= ?", last24h).Count(&stats.VerifiedOtps24h).Error; err != nil {
		return nil, err
	}
	if err := model().Where("created_at >= ?", last24h).Count(&stats.GeneratedOtps24h).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
