package jobqueue

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursekit/coursekit/internal/pkg/commerce"
)

// processRoleSyncJob grants or revokes the chat-platform role for one
// purchase. Revokes carry a NotBefore timestamp (grace period); the job is
// parked until it is due and re-checks the purchase when it finally runs,
// so a restore during the grace period cancels the revoke without any
// coordination.
func (q *Queue) processRoleSyncJob(ctx context.Context, job *Job) error {
	payload, err := RoleSyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return commerce.NewValidation("bad_payload", "invalid role sync payload").Wrap(err)
	}
	if payload.Op != RoleSyncGrant && payload.Op != RoleSyncRevoke {
		return commerce.NewValidation("bad_op", "unknown role sync op "+payload.Op)
	}

	if payload.NotBefore != nil {
		if wait := time.Until(*payload.NotBefore); wait > 0 {
			log.Debugf("[JobQueue] Role sync job %s not due for %s, parking", job.ID, wait)
			job.Status = JobStatusPending
			job.UpdatedAt = time.Now()
			q.updateJob(ctx, job)
			q.removeFromProcessing(ctx, job.ID)
			jobID := job.ID
			time.AfterFunc(wait, func() {
				q.client.LPush(context.Background(), JobQueueKey, jobID)
			})
			return ErrRequeue
		}
	}

	purchase, err := q.deps.Entitlements.GetPurchase(ctx, payload.PurchaseID)
	if err != nil {
		return err
	}

	// The purchase may have changed since this job was enqueued. Act on its
	// current status, not on the status that triggered the job.
	granting := purchase.GrantsAccess()
	if payload.Op == RoleSyncRevoke && granting {
		log.Infof("[JobQueue] Purchase %d regained access, dropping stale revoke", payload.PurchaseID)
		return nil
	}
	if payload.Op == RoleSyncGrant && !granting {
		log.Infof("[JobQueue] Purchase %d no longer grants access, dropping stale grant", payload.PurchaseID)
		return nil
	}

	user, err := q.deps.Entitlements.GetUser(ctx, payload.UserID)
	if err != nil {
		return err
	}
	if user.ChatPlatformID == "" {
		// Nothing to sync for accounts never linked to the chat platform.
		return nil
	}

	if payload.Op == RoleSyncGrant {
		return q.deps.RoleSync.GrantRole(ctx, user.ChatPlatformID)
	}
	return q.deps.RoleSync.RevokeRole(ctx, user.ChatPlatformID)
}
