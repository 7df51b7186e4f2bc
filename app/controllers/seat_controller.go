package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/repository"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/env"
	"github.com/coursekit/coursekit/internal/pkg/jobqueue"
	"github.com/coursekit/coursekit/internal/pkg/metrics/counter"
	"github.com/coursekit/coursekit/internal/pkg/seatpool"
	"github.com/coursekit/coursekit/internal/pkg/security"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// InviteTokenTTL is how long a mailed seat invitation link stays claimable.
const InviteTokenTTL = 14 * 24 * time.Hour

// SeatController handles team seat pool HTTP requests.
type SeatController struct {
	pools *seatpool.Manager
}

// NewSeatController creates a seat controller around the pool manager.
func NewSeatController(pools *seatpool.Manager) *SeatController {
	return &SeatController{pools: pools}
}

// requirePoolAccess loads the pool and checks that the caller owns the pool's
// backing purchase or is an admin.
func (sc *SeatController) requirePoolAccess(c *fiber.Ctx, poolID uint) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsAdmin {
		return nil
	}

	coupon, err := repository.GetGlobalFactory().GetCouponRepository().GetByID(poolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return seatpool.ErrPoolNotFound
		}
		return err
	}
	pool := coupon.SeatPool()
	if pool == nil {
		return seatpool.ErrPoolNotFound
	}

	owner, err := repository.GetGlobalFactory().GetPurchaseRepository().GetByID(pool.OwnerPurchaseID)
	if err != nil {
		return err
	}
	if owner.UserID == nil || *owner.UserID != userCtx.UserID {
		if owner.OrganizationID == nil || *owner.OrganizationID != userCtx.CurrentOrgID {
			return errForbidden
		}
	}
	return nil
}

var errForbidden = errors.New("not pool owner")

// HandleGetPool returns the pool capacity view.
func (sc *SeatController) HandleGetPool(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid pool id"})
	}

	if err := sc.requirePoolAccess(c, uint(poolID)); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not the pool owner"})
		}
		return jsonEngineError(c, err)
	}

	pool, err := sc.pools.Pool(c.Context(), uint(poolID))
	if err != nil {
		return jsonEngineError(c, err)
	}

	claims, err := repository.GetGlobalFactory().GetPurchaseRepository().ListBySeatPool(uint(poolID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load claims"})
	}

	return c.JSON(fiber.Map{
		"pool":   pool,
		"claims": claims,
	})
}

// HandleClaimSeat consumes a seat for an invitee email and mails the
// invitation link.
func (sc *SeatController) HandleClaimSeat(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid pool id"})
	}

	var req struct {
		InviteeEmail string `json:"invitee_email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	return sc.claimSeat(c, uint(poolID), req.InviteeEmail)
}

// HandleClaimSeatByBody is the flat claim endpoint: pool id and invitee email
// both come from the JSON body.
func (sc *SeatController) HandleClaimSeatByBody(c *fiber.Ctx) error {
	var req struct {
		PoolID       uint   `json:"pool_id"`
		InviteeEmail string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.PoolID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing pool id"})
	}
	return sc.claimSeat(c, req.PoolID, req.InviteeEmail)
}

func (sc *SeatController) claimSeat(c *fiber.Ctx, poolID uint, inviteeEmail string) error {
	if err := sc.requirePoolAccess(c, poolID); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not the pool owner"})
		}
		return jsonEngineError(c, err)
	}

	purchase, err := sc.pools.ClaimSeat(c.Context(), poolID, inviteeEmail)
	if err != nil {
		return jsonEngineError(c, err)
	}

	if err := counter.AddSeatClaim(poolID); err != nil {
		log.Debugf("[SeatPool] claim counter unavailable: %v", err)
	}

	sc.sendInvite(poolID, purchase.InviteeEmail)

	return c.Status(fiber.StatusCreated).JSON(purchase)
}

func (sc *SeatController) sendInvite(poolID uint, email string) {
	mgr := jobqueue.GetManager()
	if mgr == nil || email == "" {
		return
	}
	token, err := security.GenerateInviteToken(poolID, email, InviteTokenTTL, env.GetEnv("INVITE_TOKEN_SECRET", ""))
	if err != nil {
		log.Warnf("[SeatPool] could not sign invite token for pool %d: %v", poolID, err)
		return
	}
	claimURL := fmt.Sprintf("%s/seats/accept?token=%s", env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000"), token)
	payload := jobqueue.NotificationJobPayload{
		Email:   email,
		Subject: "You have been invited to a team course",
		Body:    fmt.Sprintf("A seat was reserved for you. Accept it here: <a href=\"%s\">%s</a>", claimURL, claimURL),
	}
	if _, err := mgr.GetQueue().EnqueueJob(jobqueue.JobTypeNotification, payload.ToMap()); err != nil {
		log.Errorf("[SeatPool] failed to enqueue invite mail for %s: %v", email, err)
	}
}

// HandleAcceptInvite resolves a mailed invite token back to its seat claim
// so the invitee can finish signup against the reserved purchase.
func (sc *SeatController) HandleAcceptInvite(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing invite token"})
	}

	claims, err := security.VerifyInviteToken(token, env.GetEnv("INVITE_TOKEN_SECRET", ""))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invite link is invalid or expired"})
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByEmail(claims.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No seat is reserved for this invite"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve invite"})
	}

	return c.JSON(fiber.Map{
		"pool_id":           claims.PoolID,
		"email":             claims.Email,
		"account_status":    user.Status,
		"activation_needed": !user.IsActive(),
	})
}

// HandleReclaimSeat frees a claimed seat back into the pool.
func (sc *SeatController) HandleReclaimSeat(c *fiber.Ctx) error {
	poolID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid pool id"})
	}

	var req struct {
		PurchaseID uint `json:"purchase_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PurchaseID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing purchase id"})
	}

	if err := sc.requirePoolAccess(c, uint(poolID)); err != nil {
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not the pool owner"})
		}
		return jsonEngineError(c, err)
	}

	if err := sc.pools.ReclaimSeat(c.Context(), uint(poolID), req.PurchaseID); err != nil {
		return jsonEngineError(c, err)
	}

	return c.JSON(fiber.Map{"status": "reclaimed"})
}

var seatController *SeatController

// GetSeatController returns the global seat controller instance.
func GetSeatController() *SeatController {
	if seatController == nil {
		seatController = NewSeatController(seatpool.NewManagerFromDB(database.GetDB()))
	}
	return seatController
}
