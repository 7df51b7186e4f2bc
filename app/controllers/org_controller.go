package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/session"
	"github.com/coursekit/coursekit/internal/pkg/subscriptions"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// requireOrgRole checks the caller's membership in the org against a role.
// Owners pass member checks; admins pass everything.
func requireOrgRole(c *fiber.Ctx, orgID uint, role string) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsAdmin {
		return nil
	}

	membership, err := repository.GetGlobalFactory().GetOrganizationRepository().GetMembership(orgID, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errForbidden
		}
		return err
	}
	if role == models.OrgRoleOwner && membership.Role != models.OrgRoleOwner {
		return errForbidden
	}
	return nil
}

// HandleCreateOrganization creates an org with the caller as owner.
func HandleCreateOrganization(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var org models.Organization
	if err := c.BodyParser(&org); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	org.ID = 0

	repo := repository.GetGlobalFactory().GetOrganizationRepository()
	if err := repo.Create(&org); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Organization slug already exists"})
	}
	if err := repo.AddMember(org.ID, userCtx.UserID, models.OrgRoleOwner); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to add owner"})
	}

	log.Infof("[Org] user %d created organization %d (%s)", userCtx.UserID, org.ID, org.Slug)

	return c.Status(fiber.StatusCreated).JSON(org)
}

// HandleGetOrganization returns the org with members and subscription state.
func HandleGetOrganization(c *fiber.Ctx) error {
	orgID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid organization id"})
	}

	if err := requireOrgRole(c, uint(orgID), models.OrgRoleMember); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not an organization member"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check membership"})
	}

	repo := repository.GetGlobalFactory().GetOrganizationRepository()
	org, err := repo.GetByID(uint(orgID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Organization not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load organization"})
	}

	members, err := repo.ListMembers(uint(orgID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load members"})
	}

	active, err := subscriptions.NewServiceFromDB(database.GetDB()).OrgHasActiveSubscription(c.Context(), uint(orgID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription state"})
	}

	return c.JSON(fiber.Map{
		"organization":            org,
		"members":                 members,
		"has_active_subscription": active,
	})
}

// HandleAddOrgMember adds a user to the org. Owner only.
func HandleAddOrgMember(c *fiber.Ctx) error {
	orgID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid organization id"})
	}

	if err := requireOrgRole(c, uint(orgID), models.OrgRoleOwner); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Organization owner required"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check membership"})
	}

	var req struct {
		UserID uint   `json:"user_id"`
		Email  string `json:"email"`
		Role   string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if req.Role == "" {
		req.Role = models.OrgRoleMember
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	if req.UserID == 0 && req.Email != "" {
		user, err := userRepo.GetByEmail(req.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No account for that email"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve member"})
		}
		req.UserID = user.ID
	}
	if req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing user id or email"})
	}

	if err := repository.GetGlobalFactory().GetOrganizationRepository().AddMember(uint(orgID), req.UserID, req.Role); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to add member"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "added", "user_id": req.UserID})
}

// HandleRemoveOrgMember removes a member. Owner only.
func HandleRemoveOrgMember(c *fiber.Ctx) error {
	orgID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid organization id"})
	}
	memberID, err := strconv.ParseUint(c.Params("userId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}

	if err := requireOrgRole(c, uint(orgID), models.OrgRoleOwner); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Organization owner required"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check membership"})
	}

	if err := repository.GetGlobalFactory().GetOrganizationRepository().RemoveMember(uint(orgID), uint(memberID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to remove member"})
	}

	return c.JSON(fiber.Map{"status": "removed"})
}

// HandleSelectOrganization switches the caller's current organization. The
// selection lives in the session and scopes subscription entitlements.
func HandleSelectOrganization(c *fiber.Ctx) error {
	orgID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid organization id"})
	}

	if err := requireOrgRole(c, uint(orgID), models.OrgRoleMember); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not an organization member"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check membership"})
	}

	if err := session.SetSessionValue(c, "current_org_id", strconv.FormatUint(orgID, 10)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Session unavailable"})
	}

	return c.JSON(fiber.Map{"status": "selected", "organization_id": orgID})
}
