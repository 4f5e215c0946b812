package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a published audio clip. Creating one costs exactly one token; the
// debit happens before the insert and the row is never written when the
// debit is rejected.
type Post struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Title          string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=1,max=200"`
	AudioObjectKey string         `gorm:"type:varchar(255);not null" json:"-"`
	Duration       float64        `gorm:"not null;default:0" json:"duration" validate:"gte=0"`
	UserName       string         `gorm:"type:varchar(150);not null;default:''" json:"user_name"`
	UserAvatarURL  string         `gorm:"type:varchar(255);not null;default:''" json:"user_avatar_url"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// BeforeCreate assigns the public UUID when the caller did not.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.New().String()
	}
	return nil
}
