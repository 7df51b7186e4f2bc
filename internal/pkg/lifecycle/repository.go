package lifecycle

import (
	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the lifecycle service.
type Repository interface {
	GetPurchaseByID(id uint) (*models.Purchase, error)
	GetPurchaseByMerchantChargeID(chargeID string) (*models.Purchase, error)
	// ApplyTransition records the status event and updates the purchase in
	// one transaction. It returns applied=false without touching the
	// purchase when the external event id was already processed. fromStatus
	// is the status the locked row held when the event was recorded.
	ApplyTransition(purchaseID uint, newStatus, externalEventID string) (applied bool, fromStatus string, purchase *models.Purchase, err error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a lifecycle repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPurchaseByID(id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPurchaseByMerchantChargeID(chargeID string) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.Where("merchant_charge_id = ?", chargeID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ApplyTransition(purchaseID uint, newStatus, externalEventID string) (bool, string, *models.Purchase, error) {
	applied := false
	fromStatus := ""
	var purchase models.Purchase

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Row lock serializes racing events for the same purchase.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&purchase, purchaseID).Error; err != nil {
			return err
		}
		fromStatus = purchase.Status

		event := &models.PurchaseStatusEvent{
			PurchaseID:      purchaseID,
			ExternalEventID: externalEventID,
			FromStatus:      purchase.Status,
			ToStatus:        newStatus,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_event_id"}},
			DoNothing: true,
		}).Create(event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already processed; leave the purchase untouched.
			return nil
		}

		applied = true
		now := tx.NowFunc()
		if err := tx.Model(&purchase).Updates(map[string]interface{}{
			"status":            newStatus,
			"status_changed_at": &now,
		}).Error; err != nil {
			return err
		}
		purchase.Status = newStatus
		purchase.StatusChangedAt = &now
		return nil
	})
	if err != nil {
		return false, "", nil, err
	}
	return applied, fromStatus, &purchase, nil
}
