package repository

import (
	"time"

	"github.com/yourusername/school-api/internal/domain/entity"
)

// AccessTokenRepository persists bearer credentials. Issue and revoke are
// independent single-row operations; no cross-request coordination.
type AccessTokenRepository interface {
	Create(token *entity.AccessToken) error
	GetByID(id uint) (*entity.AccessToken, error)
	// Delete removes exactly one credential.
	Delete(id uint) error
	// DeleteForUser removes every credential of the account (cascade cleanup).
	DeleteForUser(userID uint) (int64, error)
	TouchLastUsed(id uint, at time.Time) error
}
