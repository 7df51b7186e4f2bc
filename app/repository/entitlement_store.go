package repository

import (
	"context"

	"github.com/coursekit/coursekit/app/models"
)

// EntitlementStore resolves purchases and users for background role sync.
// It adapts the repositories to the context-aware shape the job queue
// processors expect.
type EntitlementStore struct {
	purchases PurchaseRepository
	users     UserRepository
}

// NewEntitlementStore creates an entitlement store backed by the factory's
// repositories.
func NewEntitlementStore(f *Factory) *EntitlementStore {
	return &EntitlementStore{
		purchases: f.GetPurchaseRepository(),
		users:     f.GetUserRepository(),
	}
}

// GetPurchase loads a purchase by ID.
func (s *EntitlementStore) GetPurchase(ctx context.Context, purchaseID uint) (*models.Purchase, error) {
	_ = ctx
	return s.purchases.GetByID(purchaseID)
}

// GetUser loads a user by ID.
func (s *EntitlementStore) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	_ = ctx
	return s.users.GetByID(userID)
}
