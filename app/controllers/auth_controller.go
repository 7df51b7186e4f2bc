package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/env"
	"github.com/coursekit/coursekit/internal/pkg/jobqueue"
	"github.com/coursekit/coursekit/internal/pkg/session"
	"github.com/coursekit/coursekit/internal/pkg/statistics"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates an inactive account and mails the activation link.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	user, err := models.CreateUser(req.Username, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := user.GenerateActivationToken(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create account"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if err := repo.Create(user); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email is already registered"})
	}

	activationURL := fmt.Sprintf("%s/activate?token=%s", env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000"), user.ActivationToken)
	if mgr := jobqueue.GetManager(); mgr != nil {
		payload := jobqueue.NotificationJobPayload{
			Email:   user.Email,
			Subject: "Activate your CourseKit account",
			Body:    fmt.Sprintf("Welcome! Confirm your email to finish signup: <a href=\"%s\">%s</a>", activationURL, activationURL),
		}
		if _, err := mgr.GetQueue().EnqueueJob(jobqueue.JobTypeNotification, payload.ToMap()); err != nil {
			log.Errorf("[Auth] failed to enqueue activation mail for user %d: %v", user.ID, err)
		}
	}

	// Update statistics after registration
	go statistics.UpdateStatisticsCache()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     user.ID,
		"email":  user.Email,
		"status": user.Status,
	})
}

// HandleAuthActivate flips a pending or inactive account to active.
func HandleAuthActivate(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		if err := c.BodyParser(&body); err == nil {
			token = body.Token
		}
	}
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing activation token"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByActivationToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown activation token"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Activation failed"})
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := repo.Update(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Activation failed"})
	}

	log.Infof("[Auth] user %d activated", user.ID)

	return c.JSON(fiber.Map{"id": user.ID, "status": user.Status})
}

// HandleAuthLogin verifies credentials and opens a session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	var user models.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "There is a problem with the login process"})
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "There is a problem with the login process"})
	}

	if user.Status != models.STATUS_ACTIVE {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account is not active"})
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)
	sess.Set("user_role", user.Role)

	if settings, err := models.GetOrCreateUserSettings(database.GetDB(), user.ID); err == nil && settings.DefaultOrganizationID != nil {
		sess.Set("current_org_id", strconv.FormatUint(uint64(*settings.DefaultOrganizationID), 10))
	}

	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	database.GetDB().Model(&user).Update("last_login_at", time.Now())

	ipv4, _ := GetClientIP(c)
	log.Infof("[Auth] user %d logged in from %s", user.ID, ipv4)

	return c.JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Name,
		"role":     user.Role,
	})
}

// HandleAuthLogout destroys the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	if err := sess.Destroy(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Logout failed"})
	}

	c.Locals(FROM_PROTECTED, false)

	return c.JSON(fiber.Map{"status": "logged_out"})
}
