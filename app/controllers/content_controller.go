package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/entitlements"
	"github.com/coursekit/coursekit/internal/pkg/metrics/counter"
	"github.com/coursekit/coursekit/internal/pkg/policy"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// ContentController gates content metadata behind the policy resolver.
type ContentController struct {
	loader *entitlements.Loader
}

// NewContentController creates a content controller around the snapshot loader.
func NewContentController(loader *entitlements.Loader) *ContentController {
	return &ContentController{loader: loader}
}

// HandleGetContent returns content metadata when the caller's entitlement
// snapshot permits reading it.
func (cc *ContentController) HandleGetContent(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing content slug"})
	}

	res, err := repository.GetGlobalFactory().GetContentRepository().GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Content not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load content"})
	}

	userCtx := usercontext.GetUserContext(c)
	principal, err := cc.loader.LoadPrincipal(c.Context(), userCtx.UserID, userCtx.CurrentOrgID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}

	now := time.Now()
	if !policy.Can(principal, policy.ActionRead, policy.ContentRef(res), now) {
		// Hide private resources entirely from outsiders.
		if res.Visibility == models.ContentVisibilityPrivate && !userCtx.IsLoggedIn {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Content not found"})
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "You are not entitled to this content"})
	}

	if err := counter.AddContentView(res.ID); err != nil {
		log.Debugf("[Content] view counter unavailable: %v", err)
	}

	return c.JSON(res)
}

// HandleCheckAccess answers an access check without counting a view. Used by
// the delivery layer to authorize streaming before serving the actual body.
func (cc *ContentController) HandleCheckAccess(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing content slug"})
	}

	res, err := repository.GetGlobalFactory().GetContentRepository().GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Content not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load content"})
	}

	userCtx := usercontext.GetUserContext(c)
	principal, err := cc.loader.LoadPrincipal(c.Context(), userCtx.UserID, userCtx.CurrentOrgID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}

	now := time.Now()
	allowed := policy.Can(principal, policy.ActionRead, policy.ContentRef(res), now)
	pendingOpen := false
	if !allowed {
		pendingOpen = policy.CanPendingOpenAccess(principal, res, now)
	}

	return c.JSON(fiber.Map{
		"slug":                slug,
		"allowed":             allowed,
		"pending_open_access": pendingOpen,
		"scheduled_start_at":  formatTimePtr(res.ScheduledStartAt),
	})
}

// HandleCreateContent lets editors register content metadata.
func (cc *ContentController) HandleCreateContent(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	principal, err := cc.loader.LoadPrincipal(c.Context(), userCtx.UserID, userCtx.CurrentOrgID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}
	if !policy.Can(principal, policy.ActionCreate, policy.ResourceRef{Subject: policy.SubjectContent}, time.Now()) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Editor role required"})
	}

	var res models.ContentResource
	if err := c.BodyParser(&res); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	res.ID = 0
	res.OwnerUserID = userCtx.UserID
	if res.State == "" {
		res.State = models.ContentStateDraft
	}
	if res.Visibility == "" {
		res.Visibility = models.ContentVisibilityPublic
	}

	if err := repository.GetGlobalFactory().GetContentRepository().Create(&res); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create content"})
	}

	log.Infof("[Content] user %d created content %d (%s)", userCtx.UserID, res.ID, res.Slug)

	return c.Status(fiber.StatusCreated).JSON(res)
}

var contentController *ContentController

// GetContentController returns the global content controller instance.
func GetContentController() *ContentController {
	if contentController == nil {
		contentController = NewContentController(entitlements.NewLoaderFromDB(database.GetDB()))
	}
	return contentController
}
