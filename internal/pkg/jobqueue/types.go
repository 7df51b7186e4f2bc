package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeProcessorEvent reconciles one inbound payment-processor
	// webhook event against the purchase/subscription state.
	JobTypeProcessorEvent JobType = "processor_event"
	// JobTypeRoleSync grants or revokes the external chat-platform role
	// for a purchase. Always a separate job so a platform outage never
	// re-runs the state transition that caused it.
	JobTypeRoleSync JobType = "role_sync"
	// JobTypeNotification delivers one email notification.
	JobTypeNotification JobType = "notification"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ProcessorEventJobPayload carries one normalized processor webhook event
// through the reconciliation workflow.
type ProcessorEventJobPayload struct {
	WebhookEventID uint   `json:"webhook_event_id"`
	Provider       string `json:"provider"`
	EventID        string `json:"event_id"`
	EventType      string `json:"event_type"`
	ChargeID       string `json:"charge_id,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	OrganizationID uint   `json:"organization_id,omitempty"`
	ProductID      uint   `json:"product_id,omitempty"`
	Status         string `json:"status,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p ProcessorEventJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"webhook_event_id": p.WebhookEventID,
		"provider":         p.Provider,
		"event_id":         p.EventID,
		"event_type":       p.EventType,
		"charge_id":        p.ChargeID,
		"subscription_id":  p.SubscriptionID,
		"organization_id":  p.OrganizationID,
		"product_id":       p.ProductID,
		"status":           p.Status,
	}
}

// ProcessorEventJobPayloadFromMap creates a payload from a map
func ProcessorEventJobPayloadFromMap(data map[string]interface{}) (*ProcessorEventJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProcessorEventJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// Role sync operations.
const (
	RoleSyncGrant  = "grant"
	RoleSyncRevoke = "revoke"
)

// RoleSyncJobPayload carries one role grant/revoke for a purchase. NotBefore
// implements grace periods: the job re-checks the purchase's current status
// when it finally runs, so a restored purchase cancels a pending revoke.
type RoleSyncJobPayload struct {
	PurchaseID uint       `json:"purchase_id"`
	UserID     uint       `json:"user_id"`
	Op         string     `json:"op"`
	NotBefore  *time.Time `json:"not_before,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p RoleSyncJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"purchase_id": p.PurchaseID,
		"user_id":     p.UserID,
		"op":          p.Op,
	}
	if p.NotBefore != nil {
		m["not_before"] = p.NotBefore.Format(time.RFC3339)
	}
	return m
}

// RoleSyncJobPayloadFromMap creates a payload from a map
func RoleSyncJobPayloadFromMap(data map[string]interface{}) (*RoleSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RoleSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// NotificationJobPayload carries one email notification.
type NotificationJobPayload struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ToMap converts the payload to a map for storage
func (p NotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"email":   p.Email,
		"subject": p.Subject,
		"body":    p.Body,
	}
}

// NotificationJobPayloadFromMap creates a payload from a map
func NotificationJobPayloadFromMap(data map[string]interface{}) (*NotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
