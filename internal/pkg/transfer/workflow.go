package transfer

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"gorm.io/gorm"
)

// Typed errors surfaced to API callers.
var (
	ErrTransferNotFound  = commerce.NewNotFound("transfer_not_found", "transfer does not exist")
	ErrPurchaseNotFound  = commerce.NewNotFound("purchase_not_found", "purchase does not exist")
	ErrSeatPoolPurchase  = commerce.NewConflict("seat_pool_purchase", "team seats are reassigned through the pool, not transfers")
	ErrTransferPending   = commerce.NewConflict("transfer_pending", "a transfer is already open for this purchase")
	ErrNotTransferable   = commerce.NewConflict("not_transferable", "transfer is not in a state that allows this")
	ErrNotTransferTarget = commerce.NewConflict("not_transfer_target", "only the invited recipient can confirm this transfer")
	ErrTransferExpired   = commerce.NewConflict("transfer_expired", "the transfer confirmation window has closed")
)

// Service runs the purchase ownership transfer state machine.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a transfer service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a transfer service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Initiate opens a transfer of purchaseID to targetEmail on behalf of
// sourceUserID. A purchase can hold at most one non-terminal transfer, and
// seat-pool claims can never transfer.
func (s *Service) Initiate(ctx context.Context, purchaseID, sourceUserID uint, targetEmail string) (*models.PurchaseTransfer, error) {
	_ = ctx
	target := strings.ToLower(strings.TrimSpace(targetEmail))
	if _, err := mail.ParseAddress(target); err != nil {
		return nil, commerce.NewValidation("invalid_email", "target email is not a valid address")
	}

	purchase, err := s.repo.GetPurchase(purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	if purchase.IsSeatClaim() {
		return nil, ErrSeatPoolPurchase
	}
	if purchase.UserID == nil || *purchase.UserID != sourceUserID {
		return nil, commerce.NewValidation("not_owner", "only the current owner can transfer a purchase")
	}

	now := s.now()
	expires := now.Add(models.TransferWindow)
	t := &models.PurchaseTransfer{
		Token:        uuid.New().String(),
		PurchaseID:   purchaseID,
		SourceUserID: sourceUserID,
		TargetEmail:  target,
		State:        models.TransferStateInitiated,
		ExpiresAt:    &expires,
	}
	if err := s.repo.OpenTransfer(t, now); err != nil {
		if errors.Is(err, errTransferOpen) {
			return nil, ErrTransferPending
		}
		return nil, err
	}
	log.Infof("[Transfer] initiated transfer %d of purchase %d to %s", t.ID, purchaseID, target)
	return t, nil
}

// Get returns a transfer by id.
func (s *Service) Get(ctx context.Context, transferID uint) (*models.PurchaseTransfer, error) {
	_ = ctx
	return s.get(transferID)
}

// Cancel closes an open transfer. Legal from AVAILABLE or INITIATED only.
func (s *Service) Cancel(ctx context.Context, transferID uint) (*models.PurchaseTransfer, error) {
	_ = ctx
	t, err := s.get(transferID)
	if err != nil {
		return nil, err
	}
	switch t.State {
	case models.TransferStateAvailable, models.TransferStateInitiated:
	default:
		return nil, ErrNotTransferable
	}

	now := s.now()
	t.State = models.TransferStateCanceled
	t.CompletedAt = &now
	if err := s.repo.SaveTransfer(t); err != nil {
		return nil, err
	}
	log.Infof("[Transfer] canceled transfer %d", t.ID)
	return t, nil
}

// Confirm completes an initiated transfer before its expiry, moving the
// purchase to the confirming user. The confirming user's email must match
// the invited target. A confirm after expiry marks the transfer expired
// and fails.
func (s *Service) Confirm(ctx context.Context, transferID, confirmingUserID uint) (*models.PurchaseTransfer, error) {
	_ = ctx
	if confirmingUserID == 0 {
		return nil, commerce.NewValidation("missing_user", "confirming user is required")
	}
	t, err := s.get(transferID)
	if err != nil {
		return nil, err
	}
	if t.State != models.TransferStateInitiated {
		return nil, ErrNotTransferable
	}
	if t.IsPastExpiry(s.now()) {
		t.State = models.TransferStateExpired
		if err := s.repo.SaveTransfer(t); err != nil {
			return nil, err
		}
		log.Infof("[Transfer] transfer %d expired on confirm attempt", t.ID)
		return nil, ErrTransferExpired
	}

	// Only the invited recipient may take ownership.
	user, err := s.repo.GetUser(confirmingUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTransferTarget
		}
		return nil, err
	}
	if strings.ToLower(strings.TrimSpace(user.Email)) != t.TargetEmail {
		log.Warnf("[Transfer] user %d attempted to confirm transfer %d addressed to %s",
			confirmingUserID, t.ID, t.TargetEmail)
		return nil, ErrNotTransferTarget
	}

	if err := s.repo.ConfirmTransfer(t, confirmingUserID); err != nil {
		return nil, err
	}
	log.Infof("[Transfer] confirmed transfer %d, purchase %d now owned by user %d",
		t.ID, t.PurchaseID, confirmingUserID)
	return t, nil
}

// ExpireOverdue sweeps all open transfers past their window into the
// expired state. Run periodically by the background manager.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	_ = ctx
	n, err := s.repo.ExpireOverdue(s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Infof("[Transfer] expired %d overdue transfers", n)
	}
	return n, nil
}

func (s *Service) get(transferID uint) (*models.PurchaseTransfer, error) {
	t, err := s.repo.GetTransfer(transferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return t, nil
}
