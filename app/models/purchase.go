package models

import "time"

const (
	PurchaseStatusValid      = "valid"
	PurchaseStatusRestricted = "restricted"
	PurchaseStatusRefunded   = "refunded"
	PurchaseStatusDisputed   = "disputed"
	PurchaseStatusBanned     = "banned"
)

// Purchase records one principal's access grant to one product. Rows are
// never deleted; revocation is expressed through soft status transitions
// applied by the lifecycle manager.
type Purchase struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	ProductID              uint       `gorm:"not null;index" json:"product_id"`
	UserID                 *uint      `gorm:"index" json:"user_id,omitempty"`
	OrganizationID         *uint      `gorm:"index" json:"organization_id,omitempty"`
	Status                 string     `gorm:"type:varchar(20);not null;default:'valid';index" json:"status"`
	TotalAmountCents       int64      `gorm:"not null;default:0" json:"total_amount_cents"`
	MerchantChargeID       *string    `gorm:"type:varchar(191);uniqueIndex" json:"merchant_charge_id,omitempty"`
	RedeemedCouponID       *uint      `gorm:"index" json:"redeemed_coupon_id,omitempty"`
	BulkSeatPoolID         *uint      `gorm:"index" json:"bulk_seat_pool_id,omitempty"`
	UpgradedFromPurchaseID *uint      `gorm:"index" json:"upgraded_from_purchase_id,omitempty"`
	InviteeEmail           string     `gorm:"type:varchar(200);default:null" json:"-"`
	StatusChangedAt        *time.Time `gorm:"type:timestamp;default:null" json:"status_changed_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsSeatClaim reports whether this purchase was created by claiming a seat
// from a team pool rather than a direct checkout.
func (p *Purchase) IsSeatClaim() bool {
	return p.BulkSeatPoolID != nil
}

// GrantsAccess reports whether the purchase status still entitles content
// access. Restricted purchases (e.g. region-discounted) keep read access.
func (p *Purchase) GrantsAccess() bool {
	return StatusGrantsAccess(p.Status)
}

// StatusGrantsAccess reports whether a purchase status entitles content
// access on its own.
func StatusGrantsAccess(s string) bool {
	return s == PurchaseStatusValid || s == PurchaseStatusRestricted
}

// IsValidPurchaseStatus reports whether s is a known purchase status.
func IsValidPurchaseStatus(s string) bool {
	switch s {
	case PurchaseStatusValid, PurchaseStatusRestricted, PurchaseStatusRefunded,
		PurchaseStatusDisputed, PurchaseStatusBanned:
		return true
	}
	return false
}
