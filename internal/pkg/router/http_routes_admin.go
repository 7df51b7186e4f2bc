package router

import (
	"github.com/coursekit/coursekit/app/controllers"
	"github.com/coursekit/coursekit/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)
	adminGroup.Get("/users/search", controllers.HandleAdminSearchUsers)

	// Lifecycle overrides
	adminGroup.Post("/purchases/:id/status", controllers.HandleAdminApplyPurchaseStatus)

	// Webhook ledger
	adminGroup.Get("/webhooks/unprocessed", controllers.HandleAdminListUnprocessedEvents)
	adminGroup.Post("/webhooks/:id/requeue", controllers.HandleAdminRequeueEvent)

	// Queue monitor
	adminQueue := controllers.GetAdminQueueController()
	adminGroup.Get("/queues", adminQueue.HandleAdminQueues)
	adminGroup.Get("/queues/stats", adminQueue.HandleAdminQueueStats)
	adminGroup.Delete("/queues/delete/:key", adminQueue.HandleAdminQueueDelete)
}
