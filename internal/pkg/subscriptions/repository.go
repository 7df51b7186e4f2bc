package subscriptions

import (
	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the subscription service.
type Repository interface {
	ListMembershipsByUser(userID uint) ([]models.OrganizationMembership, error)
	OrgHasActiveSubscription(orgID uint) (bool, error)
	UpsertSubscription(sub *models.Subscription) error
	GetByExternalID(externalID string) (*models.Subscription, error)
	ListByOrganization(orgID uint) ([]models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListMembershipsByUser(userID uint) ([]models.OrganizationMembership, error) {
	var ms []models.OrganizationMembership
	err := r.db.Where("user_id = ?", userID).Find(&ms).Error
	return ms, err
}

func (r *gormRepository) OrgHasActiveSubscription(orgID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).
		Where("organization_id = ? AND status = ?", orgID, models.SubscriptionStatusActive).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"organization_id",
			"product_id",
			"status",
			"current_period_start",
			"current_period_end",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("external_subscription_id = ?", sub.ExternalSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) GetByExternalID(externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("external_subscription_id = ?", externalID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListByOrganization(orgID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("organization_id = ?", orgID).Find(&subs).Error
	return subs, err
}
