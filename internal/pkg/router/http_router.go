package router

import (
	"github.com/coursekit/coursekit/app/controllers"
	"github.com/coursekit/coursekit/internal/pkg/middleware"
	"github.com/coursekit/coursekit/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Initialize admin queue controller with repository
	controllers.InitializeAdminQueueController()

	h.registerPublicRoutes(app)
	h.registerProtectedRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context
	// All user information is available via usercontext.GetUserContext(c)
	return c.Next()
}
