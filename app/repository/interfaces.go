package repository

import (
	"github.com/marcwilhelm/echowave/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByExternalIdentity(subject string) (*models.User, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// PostRepository defines the interface for post-related database operations
type PostRepository interface {
	Create(post *models.Post) error
	GetByUUID(uuid string) (*models.Post, error)
	List(offset, limit int) ([]models.Post, error)
	ListByUser(userID uint, offset, limit int) ([]models.Post, error)
	Count() (int64, error)
	CountByUser(userID uint) (int64, error)
}
