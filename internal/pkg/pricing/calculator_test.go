package pricing

import (
	"testing"
	"time"

	"github.com/coursekit/coursekit/app/models"
)

func uptr(v uint) *uint { return &v }

func TestComputePriceBase(t *testing.T) {
	product := &models.Product{ID: 2, BasePriceCents: 20000, UpgradePriceCents: 5000}

	b := ComputePrice(product, nil, nil, nil, "", time.Now())
	if b.FinalPriceCents != 20000 {
		t.Fatalf("expected 20000, got %d", b.FinalPriceCents)
	}
	if b.UpgradeFromPurchaseID != nil {
		t.Fatalf("expected no upgrade source")
	}
}

func TestComputePriceUpgradeEdge(t *testing.T) {
	// Product A (id 1) upgrades into product B (id 2): $50 upgrade vs $200 base.
	productB := &models.Product{ID: 2, BasePriceCents: 20000, UpgradePriceCents: 5000}
	edges := []models.UpgradeEdge{{FromProductID: 1, ToProductID: 2}}

	owner := []models.Purchase{{ID: 77, ProductID: 1, Status: models.PurchaseStatusValid}}
	b := ComputePrice(productB, edges, owner, nil, "", time.Now())
	if b.FinalPriceCents != 5000 {
		t.Fatalf("expected upgrade price 5000, got %d", b.FinalPriceCents)
	}
	if b.UpgradeFromPurchaseID == nil || *b.UpgradeFromPurchaseID != 77 {
		t.Fatalf("expected upgrade from purchase 77, got %v", b.UpgradeFromPurchaseID)
	}

	// No prior purchase of A: full price.
	b = ComputePrice(productB, edges, nil, nil, "", time.Now())
	if b.FinalPriceCents != 20000 {
		t.Fatalf("expected base price 20000, got %d", b.FinalPriceCents)
	}
	if b.UpgradeFromPurchaseID != nil {
		t.Fatalf("expected no upgrade source without prior purchase")
	}
}

func TestComputePriceRefundedPurchaseDoesNotUpgrade(t *testing.T) {
	productB := &models.Product{ID: 2, BasePriceCents: 20000, UpgradePriceCents: 5000}
	edges := []models.UpgradeEdge{{FromProductID: 1, ToProductID: 2}}
	history := []models.Purchase{{ID: 5, ProductID: 1, Status: models.PurchaseStatusRefunded}}

	b := ComputePrice(productB, edges, history, nil, "", time.Now())
	if b.FinalPriceCents != 20000 {
		t.Fatalf("refunded purchase must not grant upgrade pricing, got %d", b.FinalPriceCents)
	}
}

func TestComputePriceCoupon(t *testing.T) {
	product := &models.Product{ID: 1, BasePriceCents: 10000}
	coupon := &models.Coupon{PercentageDiscount: 0.2, MaxUses: models.MaxUsesUnlimited}

	b := ComputePrice(product, nil, nil, coupon, "", time.Now())
	if !b.CouponApplied {
		t.Fatalf("expected coupon to apply: %s", b.CouponProblem)
	}
	if b.FinalPriceCents != 8000 {
		t.Fatalf("expected 8000, got %d", b.FinalPriceCents)
	}
	if b.DiscountCents != 2000 {
		t.Fatalf("expected discount 2000, got %d", b.DiscountCents)
	}
}

func TestComputePriceMonotonicity(t *testing.T) {
	product := &models.Product{ID: 1, BasePriceCents: 9999}
	for _, discount := range []float64{0, 0.1, 0.25, 0.333, 0.5, 0.99, 1} {
		coupon := &models.Coupon{PercentageDiscount: discount, MaxUses: models.MaxUsesUnlimited}
		with := ComputePrice(product, nil, nil, coupon, "", time.Now())
		without := ComputePrice(product, nil, nil, nil, "", time.Now())
		if with.FinalPriceCents > without.FinalPriceCents {
			t.Fatalf("discount %v raised price: %d > %d", discount, with.FinalPriceCents, without.FinalPriceCents)
		}
		if with.FinalPriceCents < 0 {
			t.Fatalf("price must never go negative, got %d", with.FinalPriceCents)
		}
	}
}

func TestComputePriceRegionAndCouponMultiplyOnSameBase(t *testing.T) {
	product := &models.Product{ID: 1, BasePriceCents: 10000}
	coupon := &models.Coupon{PercentageDiscount: 0.2, MaxUses: models.MaxUsesUnlimited}

	b := ComputePrice(product, nil, nil, coupon, "IN", time.Now())
	// 10000 * 0.8 * 0.35 = 2800, not 10000 * (1 - 0.2 - 0.65).
	if b.FinalPriceCents != 2800 {
		t.Fatalf("expected 2800, got %d", b.FinalPriceCents)
	}
}

func TestComputePriceRoundHalfUp(t *testing.T) {
	product := &models.Product{ID: 1, BasePriceCents: 999}
	coupon := &models.Coupon{PercentageDiscount: 0.335, MaxUses: models.MaxUsesUnlimited}

	// 999 * 0.665 = 664.335 -> 664; with 0.5 boundary cases the half rounds up.
	b := ComputePrice(product, nil, nil, coupon, "", time.Now())
	if b.FinalPriceCents != 664 {
		t.Fatalf("expected 664, got %d", b.FinalPriceCents)
	}

	product = &models.Product{ID: 1, BasePriceCents: 150}
	coupon = &models.Coupon{PercentageDiscount: 0.25, MaxUses: models.MaxUsesUnlimited}
	// 150 * 0.75 = 112.5 -> 113.
	b = ComputePrice(product, nil, nil, coupon, "", time.Now())
	if b.FinalPriceCents != 113 {
		t.Fatalf("expected 113, got %d", b.FinalPriceCents)
	}
}

func TestValidateCouponProblems(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		coupon *models.Coupon
		want   CouponProblem
	}{
		{"valid", &models.Coupon{MaxUses: models.MaxUsesUnlimited}, CouponOK},
		{"inactive", &models.Coupon{Status: models.CouponStatusInactive}, CouponProblemInactive},
		{"expired", &models.Coupon{ExpiresAt: &past, MaxUses: models.MaxUsesUnlimited}, CouponProblemExpired},
		{"exhausted", &models.Coupon{MaxUses: 10, UsedCount: 10}, CouponProblemExhausted},
		{"wrong product", &models.Coupon{MaxUses: models.MaxUsesUnlimited, RestrictedToProductID: uptr(9)}, CouponProblemWrongProduct},
		{"bulk only", &models.Coupon{MaxUses: 20, BulkOwnerPurchaseID: uptr(3)}, CouponProblemBulkOnly},
	}

	for _, tt := range tests {
		if got := ValidateCoupon(tt.coupon, 1, now); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPickCouponMostSpecificWins(t *testing.T) {
	now := time.Now()
	siteDefault := &models.Coupon{ID: 1, IsDefault: true, PercentageDiscount: 0.1, MaxUses: models.MaxUsesUnlimited}
	restricted := &models.Coupon{ID: 2, PercentageDiscount: 0.4, MaxUses: models.MaxUsesUnlimited, RestrictedToProductID: uptr(7)}

	picked, problem := PickCoupon(restricted, siteDefault, 7, now)
	if problem != CouponOK || picked == nil || picked.ID != 2 {
		t.Fatalf("expected the product-restricted code to win, got %v (%s)", picked, problem)
	}

	// Invalid candidate reports its problem instead of silently falling back.
	picked, problem = PickCoupon(restricted, siteDefault, 8, now)
	if picked != nil || problem != CouponProblemWrongProduct {
		t.Fatalf("expected wrong-product problem, got %v (%s)", picked, problem)
	}

	// No candidate at all: the default applies.
	picked, problem = PickCoupon(nil, siteDefault, 8, now)
	if problem != CouponOK || picked == nil || picked.ID != 1 {
		t.Fatalf("expected the default coupon, got %v (%s)", picked, problem)
	}
}

func TestRegionMultiplier(t *testing.T) {
	if RegionMultiplier("") != 1.0 {
		t.Fatalf("empty region must pay list price")
	}
	if RegionMultiplier("in") != 0.35 {
		t.Fatalf("region codes are case-insensitive")
	}
	if RegionMultiplier("XX") != 1.0 {
		t.Fatalf("unknown region must pay list price")
	}
}
