package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/school-api/internal/domain/entity"
)

// VerificationStats aggregates the reviewer-side workload numbers.
type VerificationStats struct {
	Pending              int64          `json:"pending"`
	Verified             int64          `json:"verified"`
	Rejected             int64          `json:"rejected"`
	Total                int64          `json:"total"`
	SubmissionsLast30d   int64          `json:"submissions_last_30_days"`
	VerificationsLast30d int64          `json:"verifications_last_30_days"`
	AvgProcessingDays    float64        `json:"average_processing_days"`
	OldestPending        *entity.School `json:"-"`
}

// SchoolRepository определяет методы для работы с профилями школ
type SchoolRepository interface {
	GetByOwner(ownerUserID uint) (*entity.School, error)
	GetByID(id uint) (*entity.School, error)
	// GetByIDLocked loads the school row FOR UPDATE inside tx, so the review
	// decision's check-then-act runs atomically.
	GetByIDLocked(tx *gorm.DB, id uint) (*entity.School, error)
	// FirstOrCreateByOwner returns the owner's school, creating an empty
	// pending profile when none exists yet.
	FirstOrCreateByOwner(tx *gorm.DB, ownerUserID uint) (*entity.School, error)
	Save(tx *gorm.DB, school *entity.School) error
	UpdateFields(tx *gorm.DB, id uint, updates map[string]interface{}) error
	// ListByStatus returns schools in the given status with the owner
	// preloaded, most recently updated first.
	ListByStatus(status entity.SchoolStatus) ([]entity.School, error)
	Stats(now time.Time) (*VerificationStats, error)
}
