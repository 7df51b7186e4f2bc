package router

import (
	"github.com/coursekit/coursekit/app/controllers"
	"github.com/coursekit/coursekit/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	// Catalog
	app.Get("/products", loggedInMiddleware, controllers.HandleListProducts)
	app.Get("/products/:id", loggedInMiddleware, controllers.HandleGetProduct)

	// Content, policy-gated inside the controller
	content := controllers.GetContentController()
	app.Get("/content/:slug", loggedInMiddleware, content.HandleGetContent)

	// Seat invite acceptance (token-authenticated, no session required)
	app.Get("/seats/accept", controllers.GetSeatController().HandleAcceptInvite)

	// Auth
	app.Post("/register", controllers.HandleAuthRegister)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Get("/activate", controllers.HandleAuthActivate)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Processor webhooks (no session, signature-verified in controller)
	app.Post("/webhooks/:provider", controllers.HandleProcessorWebhook)
}

func (h HttpRouter) registerProtectedRoutes(app *fiber.App) {
	authed := app.Group("", middleware.RequireAuth)

	// Account
	authed.Get("/user/profile", controllers.HandleGetUserAccount)
	authed.Get("/user/purchases", controllers.HandleListUserPurchases)
	authed.Get("/user/entitlements", controllers.HandleGetUserEntitlements)
	authed.Post("/user/api-key", controllers.HandleIssueAPIKey)
	authed.Delete("/user/api-key", controllers.HandleRevokeAPIKey)

	// Content authoring (editor role enforced by the policy resolver)
	content := controllers.GetContentController()
	authed.Post("/content", content.HandleCreateContent)

	// Seat pools
	seats := controllers.GetSeatController()
	authed.Get("/seat-pools/:id", seats.HandleGetPool)
	authed.Post("/seat-pools/:id/claims", seats.HandleClaimSeat)
	authed.Post("/seat-pools/:id/reclaim", seats.HandleReclaimSeat)
	authed.Post("/seats/claim", seats.HandleClaimSeatByBody)

	// Transfers
	transfers := controllers.GetTransferController()
	authed.Post("/transfers", transfers.HandleInitiateTransfer)
	authed.Post("/transfers/:id/cancel", transfers.HandleCancelTransfer)
	authed.Post("/transfers/:id/confirm", transfers.HandleConfirmTransfer)

	// Organizations
	authed.Post("/orgs", controllers.HandleCreateOrganization)
	authed.Get("/orgs/:id", controllers.HandleGetOrganization)
	authed.Post("/orgs/:id/members", controllers.HandleAddOrgMember)
	authed.Delete("/orgs/:id/members/:userId", controllers.HandleRemoveOrgMember)
	authed.Post("/orgs/:id/select", controllers.HandleSelectOrganization)
}
