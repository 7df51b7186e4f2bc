package jobqueue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/coursekit/coursekit/internal/pkg/lifecycle"
	"github.com/coursekit/coursekit/internal/pkg/subscriptions"
)

// Subscription event kinds handled by the reconciliation workflow.
const (
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
)

// RoleRevokeGrace is how long a revoke waits before it runs. A dispute
// resolved in the buyer's favor inside this window silently cancels the
// revoke because the job re-checks the purchase before acting.
const RoleRevokeGrace = 24 * time.Hour

// processProcessorEventJob reconciles one payment-processor webhook event.
// Charge and dispute events drive the purchase state machine; subscription
// events upsert org subscription state. Side effects (role sync, emails)
// are enqueued as separate jobs so their failures retry independently.
func (q *Queue) processProcessorEventJob(ctx context.Context, job *Job) error {
	payload, err := ProcessorEventJobPayloadFromMap(job.Payload)
	if err != nil {
		return commerce.NewValidation("bad_payload", "invalid processor event payload").Wrap(err)
	}
	if strings.TrimSpace(payload.EventID) == "" {
		return commerce.NewValidation("missing_event_id", "processor event id is required")
	}

	var procErr error
	switch {
	case isSubscriptionEvent(payload.EventType):
		procErr = q.handleSubscriptionEvent(ctx, payload)
	default:
		procErr = q.handleChargeEvent(ctx, payload)
	}

	if procErr != nil {
		// NotFound is usually out-of-order delivery (the event arrived
		// before the purchase row). Let the normal retry schedule absorb it.
		return procErr
	}

	if q.deps.WebhookEvents != nil && payload.WebhookEventID != 0 {
		if err := q.deps.WebhookEvents.MarkProcessed(payload.WebhookEventID, ""); err != nil {
			log.Errorf("[JobQueue] Failed to mark webhook event %d processed: %v", payload.WebhookEventID, err)
		}
	}
	return nil
}

func isSubscriptionEvent(eventType string) bool {
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled:
		return true
	}
	return false
}

func (q *Queue) handleChargeEvent(ctx context.Context, payload *ProcessorEventJobPayload) error {
	newStatus, ok := lifecycle.StatusForEventType(payload.EventType)
	if !ok {
		// Processors send far more event kinds than we act on.
		log.Debugf("[JobQueue] Ignoring processor event type %s (%s)", payload.EventType, payload.EventID)
		return nil
	}
	if strings.TrimSpace(payload.ChargeID) == "" {
		return commerce.NewValidation("missing_charge_id", "charge events require a charge id")
	}

	result, err := q.deps.Lifecycle.ApplyStatusEvent(ctx,
		lifecycle.Lookup{MerchantChargeID: payload.ChargeID},
		newStatus, payload.EventID)
	if err != nil {
		return err
	}
	if !result.Applied {
		log.Infof("[JobQueue] Event %s already applied, skipping side effects", payload.EventID)
		return nil
	}

	purchase := result.Purchase
	if purchase.UserID != nil {
		if result.GrantRole {
			q.enqueueRoleSync(purchase.ID, *purchase.UserID, RoleSyncGrant, nil)
		}
		if result.RevokeRole {
			notBefore := time.Now().Add(RoleRevokeGrace)
			q.enqueueRoleSync(purchase.ID, *purchase.UserID, RoleSyncRevoke, &notBefore)
		}
		q.enqueueStatusNotification(ctx, purchase.ID, *purchase.UserID, purchase.Status)
	}
	return nil
}

func (q *Queue) handleSubscriptionEvent(ctx context.Context, payload *ProcessorEventJobPayload) error {
	status := payload.Status
	if payload.EventType == EventSubscriptionCanceled {
		status = "canceled"
	}

	var productID *uint
	if payload.ProductID != 0 {
		id := payload.ProductID
		productID = &id
	}

	_, err := q.deps.Subscriptions.SyncSubscription(ctx, subscriptions.NormalizedSubscription{
		OrganizationID:         payload.OrganizationID,
		ProductID:              productID,
		ExternalSubscriptionID: payload.SubscriptionID,
		Status:                 status,
	})
	return err
}

func (q *Queue) enqueueRoleSync(purchaseID, userID uint, op string, notBefore *time.Time) {
	payload := RoleSyncJobPayload{
		PurchaseID: purchaseID,
		UserID:     userID,
		Op:         op,
		NotBefore:  notBefore,
	}
	if _, err := q.EnqueueJob(JobTypeRoleSync, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue] Failed to enqueue role sync for purchase %d: %v", purchaseID, err)
	}
}

func (q *Queue) enqueueStatusNotification(ctx context.Context, purchaseID, userID uint, status string) {
	if q.deps.Entitlements == nil {
		return
	}
	user, err := q.deps.Entitlements.GetUser(ctx, userID)
	if err != nil || user == nil || user.Email == "" {
		return
	}
	payload := NotificationJobPayload{
		Email:   user.Email,
		Subject: fmt.Sprintf("Your purchase status changed to %s", status),
		Body: fmt.Sprintf("The status of your purchase #%d is now \"%s\". "+
			"If you did not expect this change, please contact support.", purchaseID, status),
	}
	if _, err := q.EnqueueJob(JobTypeNotification, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue] Failed to enqueue notification for purchase %d: %v", purchaseID, err)
	}
}
