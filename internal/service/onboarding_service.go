package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/domain/repository"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
	"github.com/yourusername/school-api/pkg/storage"
)

// OnboardingState is derived entirely from the school record. It is never
// stored, so there is no step counter to drift out of sync with the data.
type OnboardingState struct {
	CurrentStep    *int  `json:"current_step"`
	CompletedSteps []int `json:"completed_steps"`
	IsComplete     bool  `json:"is_complete"`
}

// ResolveOnboardingState computes the onboarding position from what the
// school record actually contains. A nil school means nothing was started.
func ResolveOnboardingState(school *entity.School) OnboardingState {
	state := OnboardingState{CompletedSteps: []int{}}

	step1Done := school != nil && school.Name != "" && school.Type != ""
	step2Done := step1Done && (school.Email != "" || school.Phone != "" || school.Address != "")
	step3Done := step2Done && school.Status != entity.SchoolStatusPending
	step4Done := step3Done && school.Status == entity.SchoolStatusVerified

	if step1Done {
		state.CompletedSteps = append(state.CompletedSteps, 1)
	}
	if step2Done {
		state.CompletedSteps = append(state.CompletedSteps, 2)
	}
	if step3Done {
		state.CompletedSteps = append(state.CompletedSteps, 3)
	}

	switch {
	case step4Done:
		state.IsComplete = true
	case step3Done:
		step := 4
		state.CurrentStep = &step
	case step2Done:
		step := 3
		state.CurrentStep = &step
	case step1Done:
		step := 2
		state.CurrentStep = &step
	default:
		step := 1
		state.CurrentStep = &step
	}

	return state
}

type Step1Input struct {
	Name        string
	Type        string
	Website     string
	Description string
	Logo        *LogoUpload
}

type LogoUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Step2Input struct {
	Email       string
	Phone       string
	Address     string
	AcceptTerms bool
}

// OnboardingStatus is the full payload for the status endpoint.
type OnboardingStatus struct {
	State  OnboardingState `json:"onboarding"`
	School *SchoolPayload  `json:"school,omitempty"`
}

// SchoolPayload is the public view of a school record.
type SchoolPayload struct {
	ID          uint                `json:"id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Email       string              `json:"email,omitempty"`
	Phone       string              `json:"phone,omitempty"`
	Address     string              `json:"address,omitempty"`
	Website     string              `json:"website,omitempty"`
	LogoURL     string              `json:"logo_url,omitempty"`
	Description string              `json:"description,omitempty"`
	Status      entity.SchoolStatus `json:"status"`
}

// OnboardingService walks an admin's school through the setup steps and the
// submission for verification.
type OnboardingService struct {
	db         *gorm.DB
	schoolRepo repository.SchoolRepository
	store      storage.Storage
}

func NewOnboardingService(db *gorm.DB, schoolRepo repository.SchoolRepository, store storage.Storage) (*OnboardingService, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if schoolRepo == nil {
		return nil, fmt.Errorf("school repository is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &OnboardingService{db: db, schoolRepo: schoolRepo, store: store}, nil
}

// Step1 records basic school info, creating the school record on first call.
func (s *OnboardingService) Step1(ctx context.Context, userID uint, input Step1Input) (*OnboardingStatus, error) {
	name := strings.TrimSpace(input.Name)
	schoolType := strings.TrimSpace(input.Type)
	if name == "" || schoolType == "" {
		return nil, fmt.Errorf("%w: name and type are required", apperrors.ErrValidation)
	}

	var logoKey string
	if input.Logo != nil && len(input.Logo.Content) > 0 {
		ext := strings.ToLower(path.Ext(input.Logo.Filename))
		key := fmt.Sprintf("logos/%s%s", uuid.NewString(), ext)
		stored, err := s.store.Store(ctx, key, input.Logo.ContentType, input.Logo.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store logo: %w", err)
		}
		logoKey = stored
	}

	var school *entity.School
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		school, err = s.schoolRepo.FirstOrCreateByOwner(tx, userID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"name":        name,
			"type":        schoolType,
			"website":     strings.TrimSpace(input.Website),
			"description": strings.TrimSpace(input.Description),
		}
		if logoKey != "" {
			updates["logo_path"] = logoKey
		}
		if err := s.schoolRepo.UpdateFields(tx, school.ID, updates); err != nil {
			return err
		}

		school.Name = name
		school.Type = schoolType
		school.Website = strings.TrimSpace(input.Website)
		school.Description = strings.TrimSpace(input.Description)
		if logoKey != "" {
			school.LogoPath = logoKey
		}
		return nil
	})
	if err != nil {
		if logoKey != "" {
			if delErr := s.store.Delete(ctx, logoKey); delErr != nil {
				log.Printf("[OnboardingService] Failed to delete orphaned logo %s: %v", logoKey, delErr)
			}
		}
		return nil, err
	}

	return s.statusFor(school), nil
}

// Step2 records contact details. Terms must be accepted explicitly.
func (s *OnboardingService) Step2(ctx context.Context, userID uint, input Step2Input) (*OnboardingStatus, error) {
	if !input.AcceptTerms {
		return nil, ErrTermsNotAccepted
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone is required", apperrors.ErrValidation)
	}

	var school *entity.School
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		school, err = s.schoolRepo.GetByOwner(userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return ErrOnboardingIncomplete
			}
			return err
		}
		if school.Name == "" || school.Type == "" {
			return ErrOnboardingIncomplete
		}

		updates := map[string]interface{}{
			"email":   strings.TrimSpace(input.Email),
			"phone":   phone,
			"address": strings.TrimSpace(input.Address),
		}
		if err := s.schoolRepo.UpdateFields(tx, school.ID, updates); err != nil {
			return err
		}

		school.Email = strings.TrimSpace(input.Email)
		school.Phone = phone
		school.Address = strings.TrimSpace(input.Address)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.statusFor(school), nil
}

// Complete submits the school for verification. Both setup steps must be
// done; resubmission after a decision is not allowed.
func (s *OnboardingService) Complete(ctx context.Context, userID uint) (*OnboardingStatus, error) {
	var school *entity.School
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.schoolRepo.GetByOwner(userID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return ErrOnboardingIncomplete
			}
			return err
		}

		school, err = s.schoolRepo.GetByIDLocked(tx, existing.ID)
		if err != nil {
			return err
		}

		if school.Name == "" || school.Type == "" {
			return ErrOnboardingIncomplete
		}
		if school.Email == "" && school.Phone == "" && school.Address == "" {
			return ErrOnboardingIncomplete
		}
		if school.Status != entity.SchoolStatusPending {
			// Already submitted or decided; report current state instead of
			// failing, unless a reviewer already decided.
			if school.IsDecided() {
				return ErrSchoolAlreadyDecided
			}
			return nil
		}

		if err := s.schoolRepo.UpdateFields(tx, school.ID, map[string]interface{}{
			"status": entity.SchoolStatusActive,
		}); err != nil {
			return err
		}
		school.Status = entity.SchoolStatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[OnboardingService] School %d submitted for verification by user %d", school.ID, userID)
	return s.statusFor(school), nil
}

// Status reports the derived onboarding state and the school payload.
func (s *OnboardingService) Status(ctx context.Context, userID uint) (*OnboardingStatus, error) {
	school, err := s.schoolRepo.GetByOwner(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.statusFor(nil), nil
		}
		return nil, err
	}
	return s.statusFor(school), nil
}

// VerificationStatusPayload reports where a submitted school stands.
type VerificationStatusPayload struct {
	Status            entity.SchoolStatus `json:"status"`
	Submitted         bool                `json:"submitted"`
	VerifiedAt        *time.Time          `json:"verified_at,omitempty"`
	VerificationNotes string              `json:"verification_notes,omitempty"`
}

// VerificationStatus reports the review state of the admin's school.
func (s *OnboardingService) VerificationStatus(ctx context.Context, userID uint) (*VerificationStatusPayload, error) {
	school, err := s.schoolRepo.GetByOwner(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrSchoolNotSubmitted
		}
		return nil, err
	}

	payload := &VerificationStatusPayload{
		Status:    school.Status,
		Submitted: school.Status != entity.SchoolStatusPending,
	}
	if school.VerifiedAt != nil {
		payload.VerifiedAt = school.VerifiedAt
	}
	if school.IsDecided() {
		payload.VerificationNotes = school.VerificationNotes
	}
	return payload, nil
}

func (s *OnboardingService) statusFor(school *entity.School) *OnboardingStatus {
	status := &OnboardingStatus{State: ResolveOnboardingState(school)}
	if school != nil {
		status.School = s.schoolPayload(school)
	}
	return status
}

func (s *OnboardingService) schoolPayload(school *entity.School) *SchoolPayload {
	var logoURL string
	if school.LogoPath != "" {
		logoURL = s.store.FileURL(school.LogoPath)
	}
	return &SchoolPayload{
		ID:          school.ID,
		Name:        school.Name,
		Type:        school.Type,
		Email:       school.Email,
		Phone:       school.Phone,
		Address:     school.Address,
		Website:     school.Website,
		LogoURL:     logoURL,
		Description: school.Description,
		Status:      school.Status,
	}
}
