package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/marcwilhelm/echowave/app/models"
	"github.com/marcwilhelm/echowave/internal/pkg/database"
	"github.com/marcwilhelm/echowave/internal/pkg/utils"
)

// HandleOAuthBegin starts the provider flow.
func HandleOAuthBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in.
// First contact creates the account; the provider subject becomes the
// external identity that checkout metadata later refers back to.
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	db := database.GetDB()
	subject := u.Provider + "|" + u.UserID

	appUser, err := models.FindUserByExternalIdentity(db, subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Optional email match so a local account gains the identity link.
		if u.Email != "" {
			var byEmail models.User
			if db.Where("email = ?", u.Email).First(&byEmail).Error == nil {
				byEmail.ExternalIdentity = subject
				if saveErr := db.Save(&byEmail).Error; saveErr != nil {
					return c.Status(fiber.StatusInternalServerError).SendString("link identity failed")
				}
				appUser = &byEmail
			}
		}
		if appUser == nil {
			// Placeholder password; OAuth accounts never log in with one.
			placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
			hash, _ := models.HashPassword(placeholder)
			email := u.Email
			if email == "" {
				email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
			}
			avatar := u.AvatarURL
			if avatar == "" {
				avatar = utils.GravatarURL(email, 200)
			}
			created := models.User{
				Name:             firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
				Email:            email,
				Password:         hash,
				ExternalIdentity: subject,
				AvatarURL:        avatar,
				Role:             models.ROLE_USER,
				Status:           models.STATUS_ACTIVE,
			}
			if createErr := db.Create(&created).Error; createErr != nil {
				log.Errorf("oauth user creation failed: %v", createErr)
				return c.Status(fiber.StatusInternalServerError).SendString("create user failed")
			}
			appUser = &created
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("db error")
	}

	if err := establishSession(c, appUser); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	_ = db.Model(appUser).UpdateColumn("last_login_at", time.Now()).Error

	return c.Redirect("/")
}

// HandleOAuthLogout clears the provider session and the app session.
func HandleOAuthLogout(c *fiber.Ctx) error {
	if err := gothfiber.Logout(c); err != nil {
		log.Warnf("provider logout failed: %v", err)
	}
	return HandleLogout(c)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
