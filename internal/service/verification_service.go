package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
	"github.com/yourusername/school-api/pkg/storage"
)

// PendingSchool is one row in the reviewer queue.
type PendingSchool struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	OwnerName   string    `json:"owner_name"`
	OwnerEmail  string    `json:"owner_email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Website     string    `json:"website,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Description string    `json:"description,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	DaysPending int       `json:"days_pending"`
}

// VerificationStatsPayload aggregates the review queue numbers.
type VerificationStatsPayload struct {
	Pending              int64   `json:"pending"`
	Verified             int64   `json:"verified"`
	Rejected             int64   `json:"rejected"`
	Total                int64   `json:"total"`
	VerificationRate     float64 `json:"verification_rate"`
	SubmissionsLast30d   int64   `json:"submissions_last_30d"`
	VerificationsLast30d int64   `json:"verifications_last_30d"`
	AvgProcessingDays    float64 `json:"avg_processing_days"`
	OldestPendingDays    *int    `json:"oldest_pending_days,omitempty"`
	OldestPendingSchool  string  `json:"oldest_pending_school,omitempty"`
}

// VerificationService is the reviewer side of school verification: listing
// the queue, approving or rejecting submissions, and queue statistics.
type VerificationService struct {
	db         *gorm.DB
	schoolRepo repository.SchoolRepository
	userRepo   repository.UserRepository
	emails     EmailService
	store      storage.Storage
}

func NewVerificationService(
	db *gorm.DB,
	schoolRepo repository.SchoolRepository,
	userRepo repository.UserRepository,
	emails EmailService,
	store storage.Storage,
) (*VerificationService, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if schoolRepo == nil {
		return nil, fmt.Errorf("school repository is required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if emails == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &VerificationService{
		db:         db,
		schoolRepo: schoolRepo,
		userRepo:   userRepo,
		emails:     emails,
		store:      store,
	}, nil
}

// ListPending returns the review queue, most recently submitted first.
func (s *VerificationService) ListPending(ctx context.Context) ([]PendingSchool, error) {
	schools, err := s.schoolRepo.ListByStatus(entity.SchoolStatusActive)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]PendingSchool, 0, len(schools))
	for _, school := range schools {
		out = append(out, s.pendingRow(&school, now))
	}
	return out, nil
}

// DecideInput carries a reviewer's decision for one school.
type DecideInput struct {
	SchoolID   uint
	ReviewerID uint
	Approve    bool
	Notes      string
}

// Decide approves or rejects a submitted school. Only schools awaiting
// review can be decided; the decision email is sent after commit and its
// failure does not undo the decision.
func (s *VerificationService) Decide(ctx context.Context, input DecideInput) (*entity.School, error) {
	var school *entity.School
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		school, err = s.schoolRepo.GetByIDLocked(tx, input.SchoolID)
		if err != nil {
			return err
		}

		if school.Status != entity.SchoolStatusActive {
			if school.IsDecided() {
				return ErrSchoolAlreadyDecided
			}
			return fmt.Errorf("%w: school %d is not awaiting review", apperrors.ErrInvalidTransition, school.ID)
		}

		status := entity.SchoolStatusVerified
		if !input.Approve {
			status = entity.SchoolStatusRejected
		}
		now := time.Now()

		if err := s.schoolRepo.UpdateFields(tx, school.ID, map[string]interface{}{
			"status":             status,
			"verified_by":        input.ReviewerID,
			"verified_at":        now,
			"verification_notes": strings.TrimSpace(input.Notes),
		}); err != nil {
			return err
		}

		school.Status = status
		school.VerifiedBy = &input.ReviewerID
		school.VerifiedAt = &now
		school.VerificationNotes = strings.TrimSpace(input.Notes)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[VerificationService] School %d decided by reviewer %d: %s", school.ID, input.ReviewerID, school.Status)
	s.notifyDecision(ctx, school)

	return school, nil
}

// Stats reports queue counters and processing metrics.
func (s *VerificationService) Stats(ctx context.Context) (*VerificationStatsPayload, error) {
	now := time.Now()
	raw, err := s.schoolRepo.Stats(now)
	if err != nil {
		return nil, err
	}

	payload := &VerificationStatsPayload{
		Pending:              raw.Pending,
		Verified:             raw.Verified,
		Rejected:             raw.Rejected,
		Total:                raw.Total,
		SubmissionsLast30d:   raw.SubmissionsLast30d,
		VerificationsLast30d: raw.VerificationsLast30d,
		AvgProcessingDays:    math.Round(raw.AvgProcessingDays*10) / 10,
	}

	decided := raw.Verified + raw.Rejected
	if decided > 0 {
		payload.VerificationRate = math.Round(float64(raw.Verified)/float64(decided)*1000) / 10
	}

	if raw.OldestPending != nil {
		days := int(now.Sub(raw.OldestPending.UpdatedAt).Hours() / 24)
		payload.OldestPendingDays = &days
		payload.OldestPendingSchool = raw.OldestPending.Name
	}

	return payload, nil
}

// ExportPending returns the queue prepared for spreadsheet export.
func (s *VerificationService) ExportPending(ctx context.Context) ([]PendingSchool, error) {
	return s.ListPending(ctx)
}

func (s *VerificationService) pendingRow(school *entity.School, now time.Time) PendingSchool {
	var logoURL string
	if school.LogoPath != "" {
		logoURL = s.store.FileURL(school.LogoPath)
	}
	row := PendingSchool{
		ID:          school.ID,
		Name:        school.Name,
		Type:        school.Type,
		Phone:       school.Phone,
		Address:     school.Address,
		Website:     school.Website,
		LogoURL:     logoURL,
		Description: school.Description,
		SubmittedAt: school.UpdatedAt,
		DaysPending: int(now.Sub(school.UpdatedAt).Hours() / 24),
	}
	if school.Owner != nil {
		row.OwnerName = school.Owner.Name
		row.OwnerEmail = school.Owner.Email
	}
	return row
}

func (s *VerificationService) notifyDecision(ctx context.Context, school *entity.School) {
	owner := school.Owner
	if owner == nil {
		var err error
		owner, err = s.userRepo.GetByID(school.OwnerUserID)
		if err != nil {
			log.Printf("[VerificationService] Failed to load owner of school %d for decision email: %v", school.ID, err)
			return
		}
	}

	approved := school.Status == entity.SchoolStatusVerified
	if err := s.emails.SendVerificationDecision(ctx, owner.Email, owner.Name, approved, school.VerificationNotes); err != nil {
		log.Printf("[VerificationService] Failed to send decision email for school %d: %v", school.ID, err)
	}
}
