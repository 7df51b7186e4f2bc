package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/coursekit/coursekit/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetUserProfile returns account information for the authenticated user (API key).
// Security is enforced via API key middleware attached in the router.
func (s *APIServer) GetUserProfile(c *fiber.Ctx) error {
	return controllers.HandleGetUserAccount(c)
}

// GetUserEntitlements returns the authenticated user's entitlement snapshot.
func (s *APIServer) GetUserEntitlements(c *fiber.Ctx) error {
	return controllers.HandleGetUserEntitlements(c)
}

// GetUserPurchases returns the authenticated user's purchase history.
func (s *APIServer) GetUserPurchases(c *fiber.Ctx) error {
	return controllers.HandleListUserPurchases(c)
}

// GetProductPrice computes the checkout price preview for a product.
func (s *APIServer) GetProductPrice(c *fiber.Ctx) error {
	return controllers.HandleProductPrice(c)
}

// GetContentAccess answers a content access check without counting a view.
func (s *APIServer) GetContentAccess(c *fiber.Ctx) error {
	return controllers.GetContentController().HandleCheckAccess(c)
}
