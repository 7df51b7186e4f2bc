package subscriptions

import (
	"context"
	"strings"
	"time"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"gorm.io/gorm"
)

// NormalizedSubscription is the processor-agnostic shape used when syncing
// external subscription state into local tables.
type NormalizedSubscription struct {
	OrganizationID         uint
	ProductID              *uint
	ExternalSubscriptionID string
	Status                 string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
}

// Service aggregates organization subscriptions and syncs processor state.
type Service struct {
	repo Repository
}

// NewService creates a subscription service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a subscription service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// HasActiveSubscription reports whether any organization the user belongs
// to holds at least one active subscription. Short-circuits on the first
// entitling org. Read-only; callers own any caching.
func (s *Service) HasActiveSubscription(ctx context.Context, userID uint) (bool, error) {
	_ = ctx
	memberships, err := s.repo.ListMembershipsByUser(userID)
	if err != nil {
		return false, err
	}

	seen := make(map[uint]struct{}, len(memberships))
	for _, m := range memberships {
		if _, dup := seen[m.OrganizationID]; dup {
			continue
		}
		seen[m.OrganizationID] = struct{}{}

		active, err := s.repo.OrgHasActiveSubscription(m.OrganizationID)
		if err != nil {
			return false, err
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// OrgHasActiveSubscription reports the aggregate entitlement of one org.
func (s *Service) OrgHasActiveSubscription(ctx context.Context, orgID uint) (bool, error) {
	_ = ctx
	return s.repo.OrgHasActiveSubscription(orgID)
}

// SyncSubscription upserts processor subscription state for an organization.
func (s *Service) SyncSubscription(ctx context.Context, in NormalizedSubscription) (*models.Subscription, error) {
	_ = ctx
	externalID := strings.TrimSpace(in.ExternalSubscriptionID)
	if in.OrganizationID == 0 || externalID == "" {
		return nil, commerce.NewValidation("missing_subscription_ref",
			"organization id and external subscription id are required")
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if status == "" {
		status = models.SubscriptionStatusActive
	}
	if !models.IsValidSubscriptionStatus(status) {
		return nil, commerce.NewValidation("invalid_subscription_status", "unknown subscription status "+status)
	}

	sub := &models.Subscription{
		OrganizationID:         in.OrganizationID,
		ProductID:              in.ProductID,
		ExternalSubscriptionID: externalID,
		Status:                 status,
		CurrentPeriodStart:     in.CurrentPeriodStart,
		CurrentPeriodEnd:       in.CurrentPeriodEnd,
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}
