package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/metrics/counter"
	"github.com/coursekit/coursekit/internal/pkg/pricing"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// HandleListProducts returns the purchasable catalog.
func HandleListProducts(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetProductRepository()
	products, err := repo.ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load products"})
	}
	return c.JSON(fiber.Map{"products": products})
}

// HandleGetProduct returns one product and counts the view.
func HandleGetProduct(c *fiber.Ctx) error {
	productID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid product id"})
	}

	repo := repository.GetGlobalFactory().GetProductRepository()
	product, err := repo.GetByID(uint(productID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load product"})
	}

	if err := counter.AddProductView(product.ID); err != nil {
		log.Debugf("[Pricing] view counter unavailable: %v", err)
	}

	return c.JSON(product)
}

// HandleProductPrice computes the checkout price preview for a product. The
// caller may pass ?coupon=CODE and ?region=XX; for logged-in users the
// purchase history drives upgrade pricing.
func HandleProductPrice(c *fiber.Ctx) error {
	productID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid product id"})
	}

	factory := repository.GetGlobalFactory()
	productRepo := factory.GetProductRepository()

	product, err := productRepo.GetByID(uint(productID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Product not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load product"})
	}

	predecessors, err := productRepo.ListPredecessorEdges(product.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load upgrade graph"})
	}

	var history []models.Purchase
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		history, err = factory.GetPurchaseRepository().ListByUser(userCtx.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load purchase history"})
		}
	}

	now := time.Now()
	couponRepo := factory.GetCouponRepository()

	var candidate *models.Coupon
	if code := c.Query("coupon"); code != "" {
		candidate, err = couponRepo.GetByCode(code)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load coupon"})
		}
	}
	siteDefault, err := couponRepo.GetDefaultForProduct(product.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load coupon"})
	}

	coupon, problem := pricing.PickCoupon(candidate, siteDefault, product.ID, now)

	region := c.Query("region")
	if region == "" {
		region = c.Get("CF-IPCountry")
	}

	breakdown := pricing.ComputePrice(product, predecessors, history, coupon, region, now)
	if breakdown.CouponProblem == pricing.CouponOK && problem != pricing.CouponOK {
		breakdown.CouponProblem = problem
	}

	return c.JSON(breakdown)
}
