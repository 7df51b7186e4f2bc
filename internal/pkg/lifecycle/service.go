package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"gorm.io/gorm"
)

// Processor event kinds that drive the purchase state machine. All other
// event kinds are ignored by the lifecycle.
const (
	EventChargeSucceeded      = "charge.succeeded"
	EventChargeRefunded       = "charge.refunded"
	EventChargeDisputed       = "charge.disputed"
	EventAccountBanned        = "account.banned"
	EventDisputeResolvedFavor = "dispute.resolved.in.favor"
)

// StatusForEventType maps a processor event kind to the purchase status it
// transitions into. ok is false for event kinds the lifecycle ignores.
func StatusForEventType(eventType string) (status string, ok bool) {
	switch strings.TrimSpace(eventType) {
	case EventChargeSucceeded, EventDisputeResolvedFavor:
		return models.PurchaseStatusValid, true
	case EventChargeRefunded:
		return models.PurchaseStatusRefunded, true
	case EventChargeDisputed:
		return models.PurchaseStatusDisputed, true
	case EventAccountBanned:
		return models.PurchaseStatusBanned, true
	}
	return "", false
}

// Lookup identifies the purchase a processor event refers to, either by
// local id or by the merchant charge reference carried in the event.
type Lookup struct {
	PurchaseID       uint
	MerchantChargeID string
}

// Result reports the outcome of a status event. Applied is false when the
// external event id was already processed (idempotent no-op, not an error).
// RevokeRole / GrantRole tell the caller which externally-synced
// entitlements changed; firing those side effects is the workflow's job,
// never the state machine's.
type Result struct {
	Applied    bool
	Purchase   *models.Purchase
	RevokeRole bool
	GrantRole  bool
}

// Service owns the purchase status state machine.
type Service struct {
	repo Repository
}

// NewService creates a lifecycle service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a lifecycle service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ApplyStatusEvent applies one processor-driven status transition. Replays
// of the same external event id mutate nothing and come back with
// Applied=false. Seat-pool claims keep their seat reserved on refund or
// dispute; only an explicit team reclaim frees it.
func (s *Service) ApplyStatusEvent(ctx context.Context, lookup Lookup, newStatus, externalEventID string) (*Result, error) {
	_ = ctx
	if !models.IsValidPurchaseStatus(newStatus) {
		return nil, commerce.NewValidation("invalid_status", "unknown purchase status "+newStatus)
	}
	if strings.TrimSpace(externalEventID) == "" {
		return nil, commerce.NewValidation("missing_event_id", "external event id is required")
	}

	purchase, err := s.resolve(lookup)
	if err != nil {
		return nil, err
	}

	applied, fromStatus, purchase, err := s.repo.ApplyTransition(purchase.ID, newStatus, externalEventID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Applied: false, Purchase: purchase}, nil
	}

	// Role flags come from the status the locked row held, not from the
	// earlier unlocked read, so a racing event cannot skew them.
	wasGranting := models.StatusGrantsAccess(fromStatus)
	isGranting := purchase.GrantsAccess()
	return &Result{
		Applied:    true,
		Purchase:   purchase,
		RevokeRole: wasGranting && !isGranting,
		GrantRole:  !wasGranting && isGranting,
	}, nil
}

func (s *Service) resolve(lookup Lookup) (*models.Purchase, error) {
	var (
		purchase *models.Purchase
		err      error
	)
	switch {
	case lookup.PurchaseID != 0:
		purchase, err = s.repo.GetPurchaseByID(lookup.PurchaseID)
	case strings.TrimSpace(lookup.MerchantChargeID) != "":
		purchase, err = s.repo.GetPurchaseByMerchantChargeID(lookup.MerchantChargeID)
	default:
		return nil, commerce.NewValidation("missing_lookup", "purchase id or merchant charge id is required")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.NewNotFound("purchase_not_found", "no purchase for the given reference").Wrap(err)
		}
		return nil, err
	}
	return purchase, nil
}
