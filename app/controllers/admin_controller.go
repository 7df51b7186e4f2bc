package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/jobqueue"
	"github.com/coursekit/coursekit/internal/pkg/lifecycle"
	"github.com/coursekit/coursekit/internal/pkg/statistics"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// HandleAdminDashboard returns the aggregate numbers and 30-day trends.
func HandleAdminDashboard(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -30)

	factory := repository.GetGlobalFactory()
	userDaily, err := factory.GetUserRepository().GetDailyStats(startDate, endDate)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user stats"})
	}
	purchaseDaily, err := factory.GetPurchaseRepository().GetDailyStats(startDate, endDate)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load purchase stats"})
	}

	return c.JSON(fiber.Map{
		"totals": fiber.Map{
			"users":           stats.TotalUsers,
			"purchases":       stats.TotalPurchases,
			"purchases_today": stats.TodayPurchases,
		},
		"daily": fiber.Map{
			"users":     userDaily,
			"purchases": purchaseDaily,
		},
	})
}

// HandleAdminSearchUsers searches users by name or email.
func HandleAdminSearchUsers(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing search query"})
	}

	users, err := repository.GetGlobalFactory().GetUserRepository().Search(query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Search failed"})
	}

	return c.JSON(fiber.Map{"users": users})
}

// HandleAdminApplyPurchaseStatus applies a manual status transition to a
// purchase. The transition runs through the same lifecycle state machine as
// processor events, with a synthetic admin event id in the audit log.
func HandleAdminApplyPurchaseStatus(c *fiber.Ctx) error {
	purchaseID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid purchase id"})
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing status"})
	}
	if !models.IsValidPurchaseStatus(req.Status) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "invalid_status", "message": "Unknown purchase status"})
	}

	userCtx := usercontext.GetUserContext(c)
	eventID := fmt.Sprintf("admin-%d-%s", userCtx.UserID, uuid.New().String())

	svc := lifecycle.NewServiceFromDB(database.GetDB())
	result, err := svc.ApplyStatusEvent(c.Context(), lifecycle.Lookup{PurchaseID: uint(purchaseID)}, req.Status, eventID)
	if err != nil {
		return jsonEngineError(c, err)
	}

	log.Infof("[Admin] user %d set purchase %d status to %s (applied=%v)",
		userCtx.UserID, purchaseID, req.Status, result.Applied)

	return c.JSON(result)
}

// HandleAdminListUnprocessedEvents lists webhook ledger rows that never
// finished reconciliation.
func HandleAdminListUnprocessedEvents(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}

	events, err := repository.GetGlobalFactory().GetWebhookEventRepository().ListUnprocessed(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load events"})
	}

	return c.JSON(fiber.Map{"events": events})
}

// HandleAdminRequeueEvent pushes an unprocessed ledger event back onto the
// reconciliation queue.
func HandleAdminRequeueEvent(c *fiber.Ctx) error {
	eventID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid event id"})
	}

	event, err := repository.GetGlobalFactory().GetWebhookEventRepository().GetByID(uint(eventID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load event"})
	}

	mgr := jobqueue.GetManager()
	if mgr == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Processing queue unavailable"})
	}

	var envelope processorEnvelope
	_ = json.Unmarshal([]byte(event.PayloadJSON), &envelope)

	payload := jobqueue.ProcessorEventJobPayload{
		WebhookEventID: event.ID,
		Provider:       event.Provider,
		EventID:        event.ProviderEventID,
		EventType:      event.EventType,
		ChargeID:       envelope.Data.ChargeID,
		SubscriptionID: envelope.Data.SubscriptionID,
		OrganizationID: envelope.Data.OrganizationID,
		ProductID:      envelope.Data.ProductID,
		Status:         envelope.Data.Status,
	}

	job, err := mgr.GetQueue().EnqueueJob(jobqueue.JobTypeProcessorEvent, payload.ToMap())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to queue event"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted", "job_id": job.ID})
}
