package seatpool

import (
	"errors"
	"strings"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the seat pool manager. A pool id
// is the id of the bulk coupon backing the pool.
type Repository interface {
	GetBulkCoupon(poolID uint) (*models.Coupon, error)
	// ClaimSeat atomically consumes one seat and creates the claimed
	// purchase for the invitee. The check-and-increment runs as a single
	// UPDATE so two racing claims on the last seat cannot both win.
	ClaimSeat(poolID uint, inviteeEmail string) (*models.Purchase, error)
	// ReclaimSeat frees one seat and marks the claimed purchase refunded.
	ReclaimSeat(poolID, purchaseID uint) error
}

// Sentinel errors surfaced by the repository and wrapped by the service.
var (
	errPoolMissing   = errors.New("seatpool: pool not found")
	errPoolExhausted = errors.New("seatpool: no seats left")
	errWrongPool     = errors.New("seatpool: purchase does not belong to pool")
	errSeatReclaimed = errors.New("seatpool: seat already reclaimed")
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a seat pool repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBulkCoupon(poolID uint) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.Where("id = ? AND bulk_owner_purchase_id IS NOT NULL", poolID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errPoolMissing
		}
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) ClaimSeat(poolID uint, inviteeEmail string) (*models.Purchase, error) {
	var claimed *models.Purchase

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Atomic check-and-increment: the WHERE clause is the seat guard.
		res := tx.Model(&models.Coupon{}).
			Where("id = ? AND bulk_owner_purchase_id IS NOT NULL AND (max_uses < 0 OR used_count < max_uses)", poolID).
			Update("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var c models.Coupon
			err := tx.Where("id = ? AND bulk_owner_purchase_id IS NOT NULL", poolID).First(&c).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errPoolMissing
			}
			if err != nil {
				return err
			}
			return errPoolExhausted
		}

		var coupon models.Coupon
		if err := tx.First(&coupon, poolID).Error; err != nil {
			return err
		}
		var owner models.Purchase
		if err := tx.First(&owner, *coupon.BulkOwnerPurchaseID).Error; err != nil {
			return err
		}

		user, err := getOrCreateUserByEmail(tx, inviteeEmail)
		if err != nil {
			return err
		}

		poolRef := poolID
		claimed = &models.Purchase{
			ProductID:        owner.ProductID,
			UserID:           &user.ID,
			OrganizationID:   owner.OrganizationID,
			Status:           models.PurchaseStatusValid,
			RedeemedCouponID: &coupon.ID,
			BulkSeatPoolID:   &poolRef,
			InviteeEmail:     strings.ToLower(strings.TrimSpace(inviteeEmail)),
		}
		return tx.Create(claimed).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *gormRepository) ReclaimSeat(poolID, purchaseID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var p models.Purchase
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errWrongPool
			}
			return err
		}
		if p.BulkSeatPoolID == nil || *p.BulkSeatPoolID != poolID {
			return errWrongPool
		}
		// A refunded claim already gave its seat back; reclaiming it again
		// would mint a phantom seat.
		if p.Status == models.PurchaseStatusRefunded {
			return errSeatReclaimed
		}

		// Floor at zero; the purchase row is kept for the audit trail.
		if err := tx.Model(&models.Coupon{}).
			Where("id = ? AND used_count > 0", poolID).
			Update("used_count", gorm.Expr("used_count - 1")).Error; err != nil {
			return err
		}
		now := tx.NowFunc()
		return tx.Model(&p).Updates(map[string]interface{}{
			"status":            models.PurchaseStatusRefunded,
			"status_changed_at": &now,
		}).Error
	})
}

// getOrCreateUserByEmail resolves the invitee, creating a pending user for
// emails without an account yet (deferred linkage).
func getOrCreateUserByEmail(tx *gorm.DB, email string) (*models.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := tx.Where("email = ?", normalized).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pending, err := models.CreatePendingUser(normalized)
	if err != nil {
		return nil, err
	}
	if err := tx.Create(pending).Error; err != nil {
		return nil, err
	}
	return pending, nil
}
