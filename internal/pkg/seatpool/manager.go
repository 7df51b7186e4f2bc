package seatpool

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"gorm.io/gorm"
)

// Typed errors surfaced to API callers.
var (
	ErrNoSeatsAvailable     = commerce.NewConflict("no_seats_available", "no seats left in this pool")
	ErrPoolNotFound         = commerce.NewNotFound("pool_not_found", "seat pool does not exist")
	ErrNotPoolPurchase      = commerce.NewConflict("not_pool_purchase", "purchase does not belong to this pool")
	ErrSeatAlreadyReclaimed = commerce.NewConflict("seat_already_reclaimed", "this seat was already reclaimed")
)

// Manager owns team/bulk seat entitlement: availability, claims, reclaims.
type Manager struct {
	repo Repository
}

// NewManager creates a seat pool manager from an injected repository.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// NewManagerFromDB creates a seat pool manager from a GORM DB handle.
func NewManagerFromDB(db *gorm.DB) *Manager {
	return NewManager(NewRepository(db))
}

// Pool returns the seat pool view for a pool id.
func (m *Manager) Pool(ctx context.Context, poolID uint) (*models.SeatPool, error) {
	_ = ctx
	coupon, err := m.repo.GetBulkCoupon(poolID)
	if err != nil {
		if errors.Is(err, errPoolMissing) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	pool := coupon.SeatPool()
	if coupon.UsedCount > coupon.MaxUses && coupon.MaxUses >= 0 {
		// A pool can only oversell through a double-claim bug upstream.
		log.Warnf("[SeatPool] pool %d used %d of %d seats, flooring availability at 0",
			poolID, coupon.UsedCount, coupon.MaxUses)
	}
	return pool, nil
}

// AvailableSeats returns the remaining claimable seats, never negative.
func (m *Manager) AvailableSeats(ctx context.Context, poolID uint) (int, error) {
	pool, err := m.Pool(ctx, poolID)
	if err != nil {
		return 0, err
	}
	return pool.AvailableSeats(), nil
}

// ClaimSeat consumes one seat and creates a valid purchase for the invitee
// email, creating a pending user when the email has no account yet.
func (m *Manager) ClaimSeat(ctx context.Context, poolID uint, inviteeEmail string) (*models.Purchase, error) {
	_ = ctx
	normalized := strings.ToLower(strings.TrimSpace(inviteeEmail))
	if _, err := mail.ParseAddress(normalized); err != nil {
		return nil, commerce.NewValidation("invalid_email", "invitee email is not a valid address")
	}

	purchase, err := m.repo.ClaimSeat(poolID, normalized)
	if err != nil {
		switch {
		case errors.Is(err, errPoolMissing):
			return nil, ErrPoolNotFound
		case errors.Is(err, errPoolExhausted):
			return nil, ErrNoSeatsAvailable
		}
		return nil, err
	}
	log.Infof("[SeatPool] claimed seat in pool %d for %s (purchase %d)", poolID, normalized, purchase.ID)
	return purchase, nil
}

// ReclaimSeat frees a claimed seat. The claimed purchase is marked refunded
// but kept, and the seat becomes claimable again. A seat can only be given
// back once; reclaiming an already refunded claim is a conflict.
func (m *Manager) ReclaimSeat(ctx context.Context, poolID, purchaseID uint) error {
	_ = ctx
	if err := m.repo.ReclaimSeat(poolID, purchaseID); err != nil {
		switch {
		case errors.Is(err, errWrongPool):
			return ErrNotPoolPurchase
		case errors.Is(err, errSeatReclaimed):
			return ErrSeatAlreadyReclaimed
		}
		return err
	}
	log.Infof("[SeatPool] reclaimed purchase %d into pool %d", purchaseID, poolID)
	return nil
}
