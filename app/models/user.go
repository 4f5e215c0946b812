package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User is the account record owned by EchoWave. TokenBalance is the audio
// token ledger balance and must only be mutated through the ledger package;
// every other component treats it as read-only.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password         string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	ExternalIdentity string         `gorm:"type:varchar(191);uniqueIndex" json:"-"`
	Role             string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status           string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	AvatarURL        string         `gorm:"type:varchar(255);default:null" json:"avatar_url" validate:"max=255"`
	TokenBalance     int64          `gorm:"not null;default:0" json:"token_balance"`
	LastLoginAt      *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a local account with a hashed password.
func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:     username,
		Email:    email,
		Password: pw,
		// Local accounts still need a distinct identity subject; the
		// external_identity column is unique and checkout metadata refers
		// back to it.
		ExternalIdentity: "local|" + email,
		Role:             ROLE_USER,
		Status:           STATUS_ACTIVE,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// FindUserByExternalIdentity resolves the opaque identity-provider subject to
// a local user. The subject is trusted verbatim; we never parse it.
func FindUserByExternalIdentity(db *gorm.DB, subject string) (*User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.New("external identity subject is required")
	}
	var u User
	if err := db.Where("external_identity = ?", subject).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
