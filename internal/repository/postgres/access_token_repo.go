package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/school-api/internal/domain/entity"
	apperrors "github.com/yourusername/school-api/internal/pkg/errors"
)

type AccessTokenRepo struct {
	db *gorm.DB
}

func NewAccessTokenRepo(db *gorm.DB) *AccessTokenRepo {
	return &AccessTokenRepo{db: db}
}

func (r *AccessTokenRepo) Create(token *entity.AccessToken) error {
	return r.db.Create(token).Error
}

func (r *AccessTokenRepo) GetByID(id uint) (*entity.AccessToken, error) {
	var token entity.AccessToken
	if err := r.db.First(&token, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return &token, nil
}

func (r *AccessTokenRepo) Delete(id uint) error {
	return r.db.Delete(&entity.AccessToken{}, id).Error
}

func (r *AccessTokenRepo) DeleteForUser(userID uint) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&entity.AccessToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete user tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *AccessTokenRepo) TouchLastUsed(id uint, at time.Time) error {
	return r.db.Model(&entity.AccessToken{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
