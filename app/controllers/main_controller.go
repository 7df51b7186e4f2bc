package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/coursekit/internal/pkg/cache"
	"github.com/coursekit/coursekit/internal/pkg/database"
)

// HandleHealth reports liveness of the engine's backing services.
func HandleHealth(c *fiber.Ctx) error {
	dbOK := false
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil && sqlDB.Ping() == nil {
			dbOK = true
		}
	}

	cacheOK := false
	if client := cache.GetClient(); client != nil {
		if err := client.Ping(c.Context()).Err(); err == nil {
			cacheOK = true
		}
	}

	status := fiber.StatusOK
	if !dbOK || !cacheOK {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"database": dbOK,
		"cache":    cacheOK,
	})
}
