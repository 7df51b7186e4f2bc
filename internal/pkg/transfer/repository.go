package transfer

import (
	"errors"
	"time"

	"github.com/coursekit/coursekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errTransferOpen signals an unexpired initiated transfer already holds the
// purchase's single open slot.
var errTransferOpen = errors.New("transfer: a transfer is already open for this purchase")

// Repository provides DB operations used by the transfer workflow.
type Repository interface {
	GetPurchase(id uint) (*models.Purchase, error)
	GetUser(id uint) (*models.User, error)
	GetTransfer(id uint) (*models.PurchaseTransfer, error)
	// OpenTransfer creates or reuses the single open transfer row of a
	// purchase in one transaction, locking the purchase row so concurrent
	// initiates serialize. An unexpired initiated transfer yields
	// errTransferOpen; one past its window is expired in place first.
	OpenTransfer(t *models.PurchaseTransfer, now time.Time) error
	SaveTransfer(t *models.PurchaseTransfer) error
	// ConfirmTransfer reassigns the purchase to the confirming user and
	// marks the transfer confirmed in one transaction.
	ConfirmTransfer(t *models.PurchaseTransfer, confirmingUserID uint) error
	// ExpireOverdue marks all open transfers past their window as expired
	// and returns how many rows changed.
	ExpireOverdue(now time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a transfer repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPurchase(id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) GetTransfer(id uint) (*models.PurchaseTransfer, error) {
	var t models.PurchaseTransfer
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) OpenTransfer(t *models.PurchaseTransfer, now time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var p models.Purchase
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, t.PurchaseID).Error; err != nil {
			return err
		}

		var open models.PurchaseTransfer
		err := tx.
			Where("purchase_id = ? AND state IN ?", t.PurchaseID,
				[]string{models.TransferStateAvailable, models.TransferStateInitiated}).
			First(&open).Error
		switch {
		case err == nil:
			if open.State == models.TransferStateInitiated {
				if !open.IsPastExpiry(now) {
					return errTransferOpen
				}
				// Stale window, expire it and open a fresh one below.
				if err := tx.Model(&open).Update("state", models.TransferStateExpired).Error; err != nil {
					return err
				}
				return tx.Create(t).Error
			}
			// Reuse the available window row.
			open.SourceUserID = t.SourceUserID
			open.TargetEmail = t.TargetEmail
			open.State = models.TransferStateInitiated
			open.ExpiresAt = t.ExpiresAt
			if err := tx.Save(&open).Error; err != nil {
				return err
			}
			*t = open
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(t).Error
		default:
			return err
		}
	})
}

func (r *gormRepository) SaveTransfer(t *models.PurchaseTransfer) error {
	return r.db.Save(t).Error
}

func (r *gormRepository) ConfirmTransfer(t *models.PurchaseTransfer, confirmingUserID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var current models.PurchaseTransfer
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, t.ID).Error; err != nil {
			return err
		}
		if current.State != models.TransferStateInitiated {
			return errors.New("transfer: state changed concurrently")
		}

		if err := tx.Model(&models.Purchase{}).
			Where("id = ?", current.PurchaseID).
			Update("user_id", confirmingUserID).Error; err != nil {
			return err
		}

		now := tx.NowFunc()
		if err := tx.Model(&current).Updates(map[string]interface{}{
			"state":        models.TransferStateConfirmed,
			"completed_at": &now,
		}).Error; err != nil {
			return err
		}
		t.State = models.TransferStateConfirmed
		t.CompletedAt = &now
		return nil
	})
}

func (r *gormRepository) ExpireOverdue(now time.Time) (int64, error) {
	result := r.db.Model(&models.PurchaseTransfer{}).
		Where("state IN ? AND expires_at < ?",
			[]string{models.TransferStateAvailable, models.TransferStateInitiated}, now).
		Update("state", models.TransferStateExpired)
	return result.RowsAffected, result.Error
}
