package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Reserved token abilities. A role ability grants full access scoped to the
// account's role; the email-verification ability only authorizes the OTP
// confirm/resend endpoints before the account is trusted.
const (
	AbilityEmailVerification = "email-verification"
	AbilityWildcard          = "*"
)

// AbilityList is an opaque capability set attached to a bearer credential,
// stored as a JSON array.
type AbilityList []string

// Can reports set-membership of the ability, honoring the wildcard.
func (a AbilityList) Can(ability string) bool {
	for _, have := range a {
		if have == AbilityWildcard || have == ability {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for GORM.
func (a AbilityList) Value() (driver.Value, error) {
	if a == nil {
		a = AbilityList{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal abilities: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for GORM.
func (a *AbilityList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = AbilityList{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported abilities source type %T", src)
	}
}

// AccessToken is a bearer credential bound to one account. Only the SHA-256
// digest of the random part is stored; the plaintext "<id>|<random>" form is
// returned once at issue time. Multiple simultaneous tokens per account are
// allowed; logout deletes only the token presented on the current request.
type AccessToken struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	UserID     uint        `gorm:"not null;index" json:"user_id"`
	Name       string      `gorm:"size:100;not null" json:"name"`
	Token      string      `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Abilities  AbilityList `gorm:"type:jsonb;not null;default:'[]'" json:"abilities"`
	LastUsedAt *time.Time  `json:"last_used_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (AccessToken) TableName() string {
	return "access_tokens"
}

// Can reports whether the credential carries the ability.
func (t *AccessToken) Can(ability string) bool {
	return t.Abilities.Can(ability)
}
