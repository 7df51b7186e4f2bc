package repository

import (
	"time"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless its (provider, event id) pair
// was seen before. The unique index is the idempotency key; a conflicting
// insert is reported as created=false, never as an error.
func (r *webhookEventRepository) CreateIfNotExists(event *models.ProcessorWebhookEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Replay; load the original row so the caller sees its id.
		var existing models.ProcessorWebhookEvent
		err := r.db.
			Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			First(&existing).Error
		if err != nil {
			return false, err
		}
		*event = existing
		return false, nil
	}
	return true, nil
}

// GetByID retrieves a webhook event by its ID
func (r *webhookEventRepository) GetByID(id uint) (*models.ProcessorWebhookEvent, error) {
	var event models.ProcessorWebhookEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed records that the event's job finished, with an optional error
func (r *webhookEventRepository) MarkProcessed(id uint, processingErr string) error {
	now := time.Now()
	return r.db.Model(&models.ProcessorWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingErr,
		}).Error
}

// ListUnprocessed retrieves events that never finished processing, oldest first
func (r *webhookEventRepository) ListUnprocessed(limit int) ([]models.ProcessorWebhookEvent, error) {
	var events []models.ProcessorWebhookEvent
	err := r.db.Where("processed_at IS NULL").Order("created_at").Limit(limit).Find(&events).Error
	return events, err
}
