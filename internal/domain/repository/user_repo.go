package repository

import (
	"github.com/yourusername/school-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с учетными записями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	Update(user *entity.User) error
	// UpdateProfile обновляет только указанные поля, не затрагивая пароль
	UpdateProfile(userID uint, updates map[string]interface{}) error
}
