package pricing

import (
	"math"
	"time"

	"github.com/coursekit/coursekit/app/models"
)

// CouponProblem is the reason a candidate coupon was not applied. Pricing
// never fails on a bad coupon; callers decide whether to fall back to
// undiscounted pricing or surface the problem.
type CouponProblem string

const (
	CouponOK                  CouponProblem = ""
	CouponProblemExpired      CouponProblem = "expired"
	CouponProblemExhausted    CouponProblem = "exhausted"
	CouponProblemWrongProduct CouponProblem = "wrong-product"
	CouponProblemInactive     CouponProblem = "inactive"
	CouponProblemBulkOnly     CouponProblem = "bulk-only"
)

// Breakdown is the result of a price computation, all amounts in the
// processor's minimum currency unit.
type Breakdown struct {
	BasePriceCents        int64         `json:"base_price_cents"`
	DiscountCents         int64         `json:"discount_cents"`
	FinalPriceCents       int64         `json:"final_price_cents"`
	UpgradeFromPurchaseID *uint         `json:"upgrade_from_purchase_id,omitempty"`
	RegionMultiplier      float64       `json:"region_multiplier"`
	CouponApplied         bool          `json:"coupon_applied"`
	CouponProblem         CouponProblem `json:"coupon_problem,omitempty"`
}

// ValidateCoupon checks whether a coupon can be redeemed against a product
// at the given time and returns the problem keeping it from applying.
func ValidateCoupon(coupon *models.Coupon, productID uint, now time.Time) CouponProblem {
	if coupon == nil {
		return CouponProblemInactive
	}
	if coupon.Status != models.CouponStatusActive {
		return CouponProblemInactive
	}
	if coupon.IsBulk() {
		// Seat pool coupons are consumed through claims only.
		return CouponProblemBulkOnly
	}
	if coupon.IsExpired(now) {
		return CouponProblemExpired
	}
	if coupon.IsExhausted() {
		return CouponProblemExhausted
	}
	if coupon.RestrictedToProductID != nil && *coupon.RestrictedToProductID != productID {
		return CouponProblemWrongProduct
	}
	return CouponOK
}

// PickCoupon chooses between a user-supplied code and the site-wide default
// coupon. Most specific wins: a valid candidate always beats the default,
// and an invalid candidate does not fall through to the default silently —
// its problem is reported so the caller can tell the buyer.
func PickCoupon(candidate, siteDefault *models.Coupon, productID uint, now time.Time) (*models.Coupon, CouponProblem) {
	if candidate != nil {
		if p := ValidateCoupon(candidate, productID, now); p != CouponOK {
			return nil, p
		}
		return candidate, CouponOK
	}
	if siteDefault != nil && ValidateCoupon(siteDefault, productID, now) == CouponOK {
		return siteDefault, CouponOK
	}
	return nil, CouponOK
}

// ComputePrice computes the checkout price for product. predecessors are the
// upgrade edges pointing into product; history is the buyer's purchases.
// Coupon discount and regional adjustment are both multiplicative on the
// same base and never stack additively. The result is rounded half-up to
// whole cents and clamped at zero. Pure: no I/O, no side effects.
func ComputePrice(product *models.Product, predecessors []models.UpgradeEdge, history []models.Purchase, coupon *models.Coupon, region string, now time.Time) Breakdown {
	b := Breakdown{
		BasePriceCents:   product.BasePriceCents,
		RegionMultiplier: RegionMultiplier(region),
	}

	base := product.BasePriceCents
	if from := upgradeSource(predecessors, history); from != nil {
		base = product.UpgradePriceCents
		b.UpgradeFromPurchaseID = &from.ID
		b.BasePriceCents = base
	}

	discountFactor := 1.0
	if coupon != nil {
		if p := ValidateCoupon(coupon, product.ID, now); p != CouponOK {
			b.CouponProblem = p
		} else {
			discountFactor = 1.0 - coupon.PercentageDiscount
			b.CouponApplied = true
		}
	}

	final := roundHalfUp(float64(base) * discountFactor * b.RegionMultiplier)
	if final < 0 {
		final = 0
	}
	b.FinalPriceCents = final
	b.DiscountCents = roundHalfUp(float64(base)*b.RegionMultiplier) - final
	if b.DiscountCents < 0 {
		b.DiscountCents = 0
	}
	return b
}

// upgradeSource returns the access-granting purchase of an upgrade
// predecessor, if the buyer owns one. The chain prefers the earliest
// purchase for stable results.
func upgradeSource(predecessors []models.UpgradeEdge, history []models.Purchase) *models.Purchase {
	if len(predecessors) == 0 {
		return nil
	}
	fromIDs := make(map[uint]struct{}, len(predecessors))
	for _, e := range predecessors {
		fromIDs[e.FromProductID] = struct{}{}
	}
	var found *models.Purchase
	for i := range history {
		p := &history[i]
		if !p.GrantsAccess() {
			continue
		}
		if _, ok := fromIDs[p.ProductID]; !ok {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			found = p
		}
	}
	return found
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
