package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/marcwilhelm/echowave/app/models"
	"github.com/marcwilhelm/echowave/app/repository"
	"github.com/marcwilhelm/echowave/internal/pkg/session"
	"github.com/marcwilhelm/echowave/internal/pkg/usercontext"
	"github.com/marcwilhelm/echowave/internal/pkg/utils"
)

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// HandleRegister creates a local account and logs it in.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request_body")
	}

	users := repository.GetGlobalFactory().GetUserRepository()
	if existing, err := users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email))); err == nil && existing != nil {
		if wantsJSON(c) {
			return jsonError(c, fiber.StatusConflict, "email_taken")
		}
		return flash.WithError(c, fiber.Map{"error": "An account with this email already exists."}).Redirect("/register")
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if wantsJSON(c) {
			return jsonError(c, fiber.StatusBadRequest, "invalid_registration")
		}
		return flash.WithError(c, fiber.Map{"error": "Please check your registration details."}).Redirect("/register")
	}
	user.AvatarURL = utils.GravatarURL(user.Email, 200)

	if err := users.Create(user); err != nil {
		log.Errorf("user registration failed: %v", err)
		if wantsJSON(c) {
			return jsonError(c, fiber.StatusInternalServerError, "registration_failed")
		}
		return flash.WithError(c, fiber.Map{"error": "Registration failed, please try again."}).Redirect("/register")
	}

	if err := establishSession(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "session_failed")
	}
	if wantsJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
	}
	return c.Redirect("/")
}

// HandleLogin verifies credentials and establishes the session.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request_body")
	}

	users := repository.GetGlobalFactory().GetUserRepository()
	user, err := users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !user.CheckPassword(req.Password) {
		if wantsJSON(c) {
			return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials")
		}
		return flash.WithError(c, fiber.Map{"error": "Invalid email or password."}).Redirect("/login")
	}

	if err := establishSession(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "session_failed")
	}
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"user": user})
	}
	return c.Redirect("/")
}

// HandleLogout destroys the session.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if destroyErr := sess.Destroy(); destroyErr != nil {
			log.Warnf("session destroy failed: %v", destroyErr)
		}
	}
	if wantsJSON(c) {
		return c.JSON(fiber.Map{"ok": true})
	}
	return c.Redirect("/")
}

func establishSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.Name)
	sess.Set(usercontext.KeyUserEmail, user.Email)
	sess.Set(usercontext.KeyIsAdmin, user.Role == models.ROLE_ADMIN)
	return sess.Save()
}

// wantsJSON reports whether the client asked for an API-style response.
func wantsJSON(c *fiber.Ctx) bool {
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, fiber.MIMEApplicationJSON) ||
		strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}
