package models

import "time"

const (
	CouponStatusActive   = 0
	CouponStatusInactive = 1
)

// MaxUsesUnlimited marks a coupon without a redemption cap.
const MaxUsesUnlimited = -1

// Coupon is a discount rule. A coupon with BulkOwnerPurchaseID set is the
// seat-allocation mechanism of a team purchase: it is never redeemable
// directly by a buyer and is only consumed through seat pool claims.
type Coupon struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Code                  string     `gorm:"type:varchar(100);uniqueIndex" json:"code"`
	PercentageDiscount    float64    `gorm:"not null;default:0" json:"percentage_discount" validate:"gte=0,lte=1"`
	MaxUses               int        `gorm:"not null;default:-1" json:"max_uses"`
	UsedCount             int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt             *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	RestrictedToProductID *uint      `gorm:"index" json:"restricted_to_product_id,omitempty"`
	BulkOwnerPurchaseID   *uint      `gorm:"index" json:"bulk_owner_purchase_id,omitempty"`
	IsDefault             bool       `gorm:"default:false;index" json:"is_default"`
	Status                int        `gorm:"not null;default:0" json:"status"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsBulk reports whether this coupon backs a team seat pool.
func (c *Coupon) IsBulk() bool {
	return c.BulkOwnerPurchaseID != nil
}

// IsExpired reports whether the coupon expiry has passed at the given time.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// IsExhausted reports whether all uses have been consumed.
func (c *Coupon) IsExhausted() bool {
	return c.MaxUses != MaxUsesUnlimited && c.UsedCount >= c.MaxUses
}

// SeatPool is the capacity envelope derived 1:1 from a bulk coupon. It is a
// read model, never stored on its own row.
type SeatPool struct {
	CouponID        uint `json:"coupon_id"`
	OwnerPurchaseID uint `json:"owner_purchase_id"`
	TotalSeats      int  `json:"total_seats"`
	UsedSeats       int  `json:"used_seats"`
}

// AvailableSeats returns the remaining claimable seats, floored at zero.
func (p *SeatPool) AvailableSeats() int {
	free := p.TotalSeats - p.UsedSeats
	if free < 0 {
		return 0
	}
	return free
}

// SeatPool projects a bulk coupon into its seat pool view. Returns nil for
// non-bulk coupons.
func (c *Coupon) SeatPool() *SeatPool {
	if !c.IsBulk() {
		return nil
	}
	return &SeatPool{
		CouponID:        c.ID,
		OwnerPurchaseID: *c.BulkOwnerPurchaseID,
		TotalSeats:      c.MaxUses,
		UsedSeats:       c.UsedCount,
	}
}
