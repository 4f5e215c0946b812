package repository

import (
	"gorm.io/gorm"

	"github.com/marcwilhelm/echowave/app/models"
)

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a post repository backed by GORM.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

func (r *postRepository) GetByUUID(uuid string) (*models.Post, error) {
	var post models.Post
	if err := r.db.Where("uuid = ?", uuid).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByUser(userID uint, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	return posts, err
}

func (r *postRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Count(&count).Error
	return count, err
}

func (r *postRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Post{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
