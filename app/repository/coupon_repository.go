package repository

import (
	"strings"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
)

// couponRepository implements the CouponRepository interface
type couponRepository struct {
	db *gorm.DB
}

// NewCouponRepository creates a new coupon repository instance
func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

// Create creates a new coupon in the database
func (r *couponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

// GetByID retrieves a coupon by its ID
func (r *couponRepository) GetByID(id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.First(&coupon, id).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetByCode retrieves a coupon by its code, case-insensitively
func (r *couponRepository) GetByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.Where("code = ?", strings.TrimSpace(code)).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetBulkByOwnerPurchase retrieves the seat pool coupon of a team purchase
func (r *couponRepository) GetBulkByOwnerPurchase(ownerPurchaseID uint) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.Where("bulk_owner_purchase_id = ?", ownerPurchaseID).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Update updates an existing coupon
func (r *couponRepository) Update(coupon *models.Coupon) error {
	return r.db.Save(coupon).Error
}

// List retrieves a paginated list of coupons
func (r *couponRepository) List(offset, limit int) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&coupons).Error
	return coupons, err
}

// GetDefaultForProduct retrieves the sitewide or product-scoped default
// coupon applied when a buyer provides no code. Product-scoped defaults win
// over sitewide ones.
func (r *couponRepository) GetDefaultForProduct(productID uint) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.
		Where("is_default = ? AND status = ? AND (restricted_to_product_id = ? OR restricted_to_product_id IS NULL)",
			true, models.CouponStatusActive, productID).
		Order("restricted_to_product_id IS NULL").
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}
