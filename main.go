package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/cache"
	"github.com/coursekit/coursekit/internal/pkg/constants"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/env"
	"github.com/coursekit/coursekit/internal/pkg/jobqueue"
	"github.com/coursekit/coursekit/internal/pkg/lifecycle"
	"github.com/coursekit/coursekit/internal/pkg/mail"
	"github.com/coursekit/coursekit/internal/pkg/rolesync"
	"github.com/coursekit/coursekit/internal/pkg/router"
	"github.com/coursekit/coursekit/internal/pkg/subscriptions"
	"github.com/coursekit/coursekit/internal/pkg/transfer"
)

func main() {
	app := NewApplication()

	// shutdown background workers before the process exits
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalFactory()

	jobqueue.InitManager(jobqueue.Deps{
		Lifecycle:     lifecycle.NewServiceFromDB(db),
		Subscriptions: subscriptions.NewServiceFromDB(db),
		WebhookEvents: repos.GetWebhookEventRepository(),
		RoleSync:      rolesync.NewClientFromEnv(),
		Mailer:        mail.SMTPMailer{},
		Entitlements:  repository.NewEntitlementStore(repos),
	}, transfer.NewServiceFromDB(db))
	jobqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		AppName: "CourseKit",
	})
	app.Use(recover.New(), logger.New())
	app.Get(constants.MetricsRoute, monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
