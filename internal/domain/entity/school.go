package entity

import "time"

// SchoolStatus is the verification lifecycle state of a school profile.
//
//	pending  — profile created, self-service onboarding in progress
//	active   — subject submitted the profile for review
//	verified — terminal, approved by a reviewer
//	rejected — terminal, rejected by a reviewer
type SchoolStatus string

const (
	SchoolStatusPending  SchoolStatus = "pending"
	SchoolStatusActive   SchoolStatus = "active"
	SchoolStatusVerified SchoolStatus = "verified"
	SchoolStatusRejected SchoolStatus = "rejected"
)

// School is the organization profile owned by exactly one admin account.
// It is created implicitly on the first onboarding write.
type School struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	OwnerUserID uint         `gorm:"not null;uniqueIndex" json:"owner_user_id"`
	Name        string       `gorm:"size:255;not null;default:''" json:"name"`
	Type        string       `gorm:"size:100;not null;default:''" json:"type"`
	Email       string       `gorm:"size:255;not null;default:''" json:"email"`
	Phone       string       `gorm:"size:20;not null;default:''" json:"phone"`
	Address     string       `gorm:"size:255;not null;default:''" json:"address"`
	Website     string       `gorm:"size:255;not null;default:''" json:"website"`
	LogoPath    string       `gorm:"size:255;not null;default:''" json:"logo_path,omitempty"`
	Description string       `gorm:"size:1000;not null;default:''" json:"description"`
	Status      SchoolStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	VerifiedBy        *uint      `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerificationNotes string     `gorm:"size:1000;not null;default:''" json:"verification_notes,omitempty"`

	Owner *User `gorm:"foreignKey:OwnerUserID" json:"owner,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (School) TableName() string {
	return "schools"
}

// IsDecided reports whether the profile reached a terminal review state.
func (s *School) IsDecided() bool {
	return s.Status == SchoolStatusVerified || s.Status == SchoolStatusRejected
}
