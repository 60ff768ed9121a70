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

type SchoolRepo struct {
	db *gorm.DB
}

func NewSchoolRepo(db *gorm.DB) *SchoolRepo {
	return &SchoolRepo{db: db}
}

func (r *SchoolRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *SchoolRepo) GetByOwner(ownerUserID uint) (*entity.School, error) {
	var school entity.School
	if err := r.db.Where("owner_user_id = ?", ownerUserID).First(&school).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get school by owner: %w", err)
	}
	return &school, nil
}

func (r *SchoolRepo) GetByID(id uint) (*entity.School, error) {
	var school entity.School
	if err := r.db.Preload("Owner").First(&school, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get school: %w", err)
	}
	return &school, nil
}

// GetByIDLocked загружает школу с блокировкой FOR UPDATE внутри транзакции.
func (r *SchoolRepo) GetByIDLocked(tx *gorm.DB, id uint) (*entity.School, error) {
	var school entity.School
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&school, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock school: %w", err)
	}
	return &school, nil
}

func (r *SchoolRepo) FirstOrCreateByOwner(tx *gorm.DB, ownerUserID uint) (*entity.School, error) {
	var school entity.School
	err := r.conn(tx).
		Where(entity.School{OwnerUserID: ownerUserID}).
		Attrs(entity.School{Status: entity.SchoolStatusPending}).
		FirstOrCreate(&school).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create school: %w", err)
	}
	return &school, nil
}

func (r *SchoolRepo) Save(tx *gorm.DB, school *entity.School) error {
	return r.conn(tx).Save(school).Error
}

func (r *SchoolRepo) UpdateFields(tx *gorm.DB, id uint, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return r.conn(tx).Model(&entity.School{}).Where("id = ?", id).Updates(updates).Error
}

func (r *SchoolRepo) ListByStatus(status entity.SchoolStatus) ([]entity.School, error) {
	var schools []entity.School
	err := r.db.Preload("Owner").
		Where("status = ?", status).
		Order("updated_at DESC").
		Find(&schools).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list schools: %w", err)
	}
	return schools, nil
}

func (r *SchoolRepo) Stats(now time.Time) (*repository.VerificationStats, error) {
	stats := &repository.VerificationStats{}
	last30d := now.Add(-30 * 24 * time.Hour)

	model := func() *gorm.DB { return r.db.Model(&entity.School{}) }

	if err := model().Where("status = ?", entity.SchoolStatusActive).Count(&stats.Pending).Error; err != nil {
		return nil, err
	}
	if err := model().Where("status = ?", entity.SchoolStatusVerified).Count(&stats.Verified).Error; err != nil {
		return nil, err
	}
	if err := model().Where("status = ?", entity.SchoolStatusRejected).Count(&stats.Rejected).Error; err != nil {
		return nil, err
	}
	if err := model().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := model().Where("created_at >= ?", last30d).Count(&stats.SubmissionsLast30d).Error; err != nil {
		return nil, err
	}
	if err := model().Where("verified_at >= ?", last30d).Count(&stats.VerificationsLast30d).Error; err != nil {
		return nil, err
	}

	var avg *float64
	err := model().
		Where("verified_at IS NOT NULL").
		Select("AVG(EXTRACT(EPOCH FROM (verified_at - created_at)) / 86400.0)").
		Scan(&avg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute avg processing days: %w", err)
	}
	if avg != nil {
		stats.AvgProcessingDays = *avg
	}

	var oldest entity.School
	err = r.db.Preload("Owner").
		Where("status = ?", entity.SchoolStatusActive).
		Order("updated_at ASC").
		First(&oldest).Error
	if err == nil {
		stats.OldestPending = &oldest
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get oldest pending school: %w", err)
	}

	return stats, nil
}
