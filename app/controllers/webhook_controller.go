package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/env"
	"github.com/coursekit/coursekit/internal/pkg/jobqueue"
	"github.com/coursekit/coursekit/internal/pkg/metrics/counter"
	"github.com/coursekit/coursekit/internal/pkg/security"
)

// processorEnvelope is the normalized shape of an inbound processor event.
// Providers differ in envelope details; the ingest keeps the raw payload in
// the ledger and extracts only the fields reconciliation needs.
type processorEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ChargeID       string `json:"charge_id"`
		SubscriptionID string `json:"subscription_id"`
		OrganizationID uint   `json:"organization_id"`
		ProductID      uint   `json:"product_id"`
		Status         string `json:"status"`
	} `json:"data"`
}

// HandleProcessorWebhook ingests a payment-processor webhook: verify the
// signature, record the event idempotently, hand reconciliation to the job
// queue, and answer fast. All heavy lifting happens in the workers.
func HandleProcessorWebhook(c *fiber.Ctx) error {
	provider := c.Params("provider", "processor")
	body := c.Body()

	secret := env.GetEnv("PROCESSOR_WEBHOOK_SECRET", "")
	signature := c.Get("X-Processor-Signature")
	signatureValid := security.VerifyProcessorWebhookSignature(body, signature, secret)
	if !signatureValid {
		if secret == "" && env.IsDev() {
			log.Warnf("[Webhook] accepting unsigned %s event: no webhook secret configured", provider)
		} else {
			log.Warnf("[Webhook] rejected %s event with bad signature", provider)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
		}
	}

	var envelope processorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Payload is not valid JSON"})
	}
	if envelope.EventID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing event_id"})
	}

	event := &models.ProcessorWebhookEvent{
		Provider:        provider,
		ProviderEventID: envelope.EventID,
		EventType:       envelope.EventType,
		PayloadJSON:     string(body),
		SignatureValid:  signatureValid,
	}

	created, err := repository.GetGlobalFactory().GetWebhookEventRepository().CreateIfNotExists(event)
	if err != nil {
		log.Errorf("[Webhook] failed to record %s event %s: %v", provider, envelope.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to record event"})
	}
	if !created {
		// Replay of an event we already hold. The ledger row wins; answer
		// success so the processor stops retrying.
		return c.JSON(fiber.Map{"status": "duplicate", "event_id": envelope.EventID})
	}

	if err := counter.AddWebhookEvent(provider); err != nil {
		log.Debugf("[Webhook] event counter unavailable: %v", err)
	}

	payload := jobqueue.ProcessorEventJobPayload{
		WebhookEventID: event.ID,
		Provider:       provider,
		EventID:        envelope.EventID,
		EventType:      envelope.EventType,
		ChargeID:       envelope.Data.ChargeID,
		SubscriptionID: envelope.Data.SubscriptionID,
		OrganizationID: envelope.Data.OrganizationID,
		ProductID:      envelope.Data.ProductID,
		Status:         envelope.Data.Status,
	}

	mgr := jobqueue.GetManager()
	if mgr == nil {
		log.Errorf("[Webhook] job queue not running, event %s stays unprocessed", envelope.EventID)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Processing queue unavailable"})
	}

	job, err := mgr.GetQueue().EnqueueJob(jobqueue.JobTypeProcessorEvent, payload.ToMap())
	if err != nil {
		log.Errorf("[Webhook] failed to enqueue event %s: %v", envelope.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to queue event"})
	}

	log.Infof("[Webhook] accepted %s event %s (%s) as job %s", provider, envelope.EventID, envelope.EventType, job.ID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":   "accepted",
		"event_id": envelope.EventID,
		"job_id":   job.ID,
	})
}
