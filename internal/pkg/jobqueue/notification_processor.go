package jobqueue

import (
	"context"
	"strings"

	"github.com/coursekit/coursekit/internal/pkg/commerce"
)

// processNotificationJob delivers one email through the configured mailer.
func (q *Queue) processNotificationJob(ctx context.Context, job *Job) error {
	_ = ctx
	payload, err := NotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return commerce.NewValidation("bad_payload", "invalid notification payload").Wrap(err)
	}
	if strings.TrimSpace(payload.Email) == "" {
		return commerce.NewValidation("missing_email", "notification requires a recipient")
	}
	if q.deps.Mailer == nil {
		// No mailer configured (tests, local dev). Drop silently.
		return nil
	}
	return q.deps.Mailer.SendMail(payload.Email, payload.Subject, payload.Body)
}
