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
	"github.com/coursekit/coursekit/internal/pkg/subscriptions"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// HandleGetUserAccount returns account information for the authenticated user (API key or session).
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	purchases, err := repository.GetGlobalFactory().GetPurchaseRepository().ListByUser(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load purchases"})
	}
	granting := 0
	for i := range purchases {
		if purchases[i].GrantsAccess() {
			granting++
		}
	}

	subscribed, err := subscriptions.NewServiceFromDB(db).HasActiveSubscription(c.Context(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription state"})
	}

	response := fiber.Map{
		"id":                   account.ID,
		"username":             account.Name,
		"email":                account.Email,
		"status":               account.Status,
		"role":                 account.Role,
		"is_admin":             account.Role == models.ROLE_ADMIN,
		"created_at":           account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":        formatTimePtr(account.LastLoginAt),
		"api_key_last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		"stats": fiber.Map{
			"purchases": fiber.Map{
				"count":    len(purchases),
				"granting": granting,
			},
			"has_active_subscription": subscribed,
		},
		"preferences": fiber.Map{
			"default_organization_id": settings.DefaultOrganizationID,
			"notify_on_status_change": settings.NotifyOnStatusChange,
		},
	}

	return c.JSON(response)
}

// HandleListUserPurchases returns the caller's purchase history with the
// applied-transitions log on request (?events=1).
func HandleListUserPurchases(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	purchaseRepo := repository.GetGlobalFactory().GetPurchaseRepository()
	purchases, err := purchaseRepo.ListByUser(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load purchases"})
	}

	if c.Query("events") == "" {
		return c.JSON(fiber.Map{"purchases": purchases})
	}

	type purchaseWithEvents struct {
		models.Purchase
		Events []models.PurchaseStatusEvent `json:"events"`
	}
	out := make([]purchaseWithEvents, 0, len(purchases))
	for i := range purchases {
		events, err := purchaseRepo.ListStatusEvents(purchases[i].ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load status events"})
		}
		out = append(out, purchaseWithEvents{Purchase: purchases[i], Events: events})
	}

	return c.JSON(fiber.Map{"purchases": out})
}

// HandleGetUserEntitlements returns the caller's entitlement snapshot: owned
// products and org-level subscription entitlements.
func HandleGetUserEntitlements(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	principal, err := entitlements.NewLoaderFromDB(database.GetDB()).LoadPrincipal(c.Context(), userCtx.UserID, userCtx.CurrentOrgID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load entitlements"})
	}

	ownedProducts := make([]uint, 0, len(principal.Purchases))
	seen := make(map[uint]bool, len(principal.Purchases))
	for i := range principal.Purchases {
		p := &principal.Purchases[i]
		if p.GrantsAccess() && !seen[p.ProductID] {
			seen[p.ProductID] = true
			ownedProducts = append(ownedProducts, p.ProductID)
		}
	}

	subscribedProducts := make([]uint, 0, len(principal.SubscribedProductIDs))
	for id := range principal.SubscribedProductIDs {
		subscribedProducts = append(subscribedProducts, id)
	}

	return c.JSON(fiber.Map{
		"user_id":                   principal.UserID,
		"role":                      principal.Role,
		"owned_product_ids":         ownedProducts,
		"subscribed_product_ids":    subscribedProducts,
		"has_sitewide_subscription": principal.HasSitewideSubscription,
		"current_organization_id":   userCtx.CurrentOrgID,
	})
}

// HandleIssueAPIKey issues a fresh API key, invalidating any previous one.
// The plaintext key appears in this response only.
func HandleIssueAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	plaintext, err := settings.IssueAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to issue API key"})
	}
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store API key"})
	}

	log.Infof("[User] issued API key for user %d", userCtx.UserID)

	return c.JSON(fiber.Map{
		"api_key":    plaintext,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

// HandleRevokeAPIKey revokes the active API key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	if !settings.HasActiveAPIKey() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No active API key"})
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to revoke API key"})
	}

	log.Infof("[User] revoked API key for user %d", userCtx.UserID)

	return c.JSON(fiber.Map{"status": "revoked"})
}
