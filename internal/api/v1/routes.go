package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// ServerInterface is the contract the v1 API surface implements. The router
// attaches auth middleware per group before registration.
type ServerInterface interface {
	// GetPing returns a liveness pong.
	GetPing(c *fiber.Ctx) error
	// GetUserProfile returns the authenticated account.
	GetUserProfile(c *fiber.Ctx) error
	// GetUserEntitlements returns the entitlement snapshot.
	GetUserEntitlements(c *fiber.Ctx) error
	// GetUserPurchases returns the purchase history.
	GetUserPurchases(c *fiber.Ctx) error
	// GetProductPrice returns the checkout price preview.
	GetProductPrice(c *fiber.Ctx) error
	// GetContentAccess answers a content access check.
	GetContentAccess(c *fiber.Ctx) error
}

// RegisterHandlers binds the public v1 routes onto the router group.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	router.Get("/ping", si.GetPing)
	router.Get("/products/:id/price", si.GetProductPrice)
	router.Get("/content/:slug/access", si.GetContentAccess)
}

// RegisterUserHandlers binds the API-key protected account routes.
func RegisterUserHandlers(router fiber.Router, si ServerInterface) {
	router.Get("/user/profile", si.GetUserProfile)
	router.Get("/user/entitlements", si.GetUserEntitlements)
	router.Get("/user/purchases", si.GetUserPurchases)
}
