package repository

import (
	"fmt"
	"time"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// Create creates a new purchase in the database
func (r *purchaseRepository) Create(purchase *models.Purchase) error {
	return r.db.Create(purchase).Error
}

// GetByID retrieves a purchase by its ID
func (r *purchaseRepository) GetByID(id uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.First(&purchase, id).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetByMerchantChargeID retrieves a purchase by its processor charge reference
func (r *purchaseRepository) GetByMerchantChargeID(chargeID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.Where("merchant_charge_id = ?", chargeID).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ListByUser retrieves all purchases of a user, newest first
func (r *purchaseRepository) ListByUser(userID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}

// ListByOrganization retrieves all purchases held by an organization
func (r *purchaseRepository) ListByOrganization(orgID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Where("organization_id = ?", orgID).Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}

// ListBySeatPool retrieves all seat-claim purchases of one pool
func (r *purchaseRepository) ListBySeatPool(poolID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Where("bulk_seat_pool_id = ?", poolID).Order("created_at").Find(&purchases).Error
	return purchases, err
}

// CountGrantingByProduct counts access-granting purchases of a product,
// used to enforce limited quantities.
func (r *purchaseRepository) CountGrantingByProduct(productID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).
		Where("product_id = ? AND status IN ?", productID,
			[]string{models.PurchaseStatusValid, models.PurchaseStatusRestricted}).
		Count(&count).Error
	return count, err
}

// Update updates an existing purchase
func (r *purchaseRepository) Update(purchase *models.Purchase) error {
	return r.db.Save(purchase).Error
}

// Count returns the total number of purchases
func (r *purchaseRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).Count(&count).Error
	return count, err
}

// GetDailyStats returns daily purchase counts for a date range
func (r *purchaseRepository) GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	err := r.db.Model(&models.Purchase{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get daily purchase stats: %w", err)
	}

	dailyStats := make([]models.DailyStats, len(results))
	for i, result := range results {
		dailyStats[i] = models.DailyStats{
			Date:  result.Date,
			Count: int(result.Count),
		}
	}

	return dailyStats, nil
}

// ListStatusEvents returns the applied transition history of a purchase
func (r *purchaseRepository) ListStatusEvents(purchaseID uint) ([]models.PurchaseStatusEvent, error) {
	var events []models.PurchaseStatusEvent
	err := r.db.Where("purchase_id = ?", purchaseID).Order("created_at DESC").Find(&events).Error
	return events, err
}
