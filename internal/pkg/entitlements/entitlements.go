package entitlements

import (
	"context"
	"errors"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/policy"
	"gorm.io/gorm"
)

// Repository provides the read set the snapshot loader pre-fetches.
type Repository interface {
	GetUser(id uint) (*models.User, error)
	ListPurchasesByUser(userID uint) ([]models.Purchase, error)
	ListActiveSubscriptionsByOrg(orgID uint) ([]models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlements repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) ListPurchasesByUser(userID uint) ([]models.Purchase, error) {
	var ps []models.Purchase
	err := r.db.Where("user_id = ?", userID).Find(&ps).Error
	return ps, err
}

func (r *gormRepository) ListActiveSubscriptionsByOrg(orgID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("organization_id = ? AND status = ?", orgID, models.SubscriptionStatusActive).
		Find(&subs).Error
	return subs, err
}

// Loader builds policy principals by pre-fetching everything the resolver
// needs, so the resolver itself stays pure on the request path.
type Loader struct {
	repo Repository
}

// NewLoader creates a loader from an injected repository.
func NewLoader(repo Repository) *Loader {
	return &Loader{repo: repo}
}

// NewLoaderFromDB creates a loader from a GORM DB handle.
func NewLoaderFromDB(db *gorm.DB) *Loader {
	return NewLoader(NewRepository(db))
}

// LoadPrincipal assembles the entitlement snapshot of a user. currentOrgID
// is the session's current organization, zero for none; only that org's
// subscriptions feed the snapshot. Unknown user ids yield the anonymous
// principal rather than an error so the policy default-deny applies.
func (l *Loader) LoadPrincipal(ctx context.Context, userID, currentOrgID uint) (policy.Principal, error) {
	_ = ctx
	if userID == 0 {
		return policy.Principal{}, nil
	}

	user, err := l.repo.GetUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Principal{}, nil
		}
		return policy.Principal{}, err
	}

	p := policy.Principal{
		UserID:        user.ID,
		Role:          user.Role,
		ContentEditor: user.Role == models.ROLE_EDITOR || user.Role == models.ROLE_ADMIN,
	}

	p.Purchases, err = l.repo.ListPurchasesByUser(userID)
	if err != nil {
		return policy.Principal{}, err
	}

	if currentOrgID != 0 {
		subs, err := l.repo.ListActiveSubscriptionsByOrg(currentOrgID)
		if err != nil {
			return policy.Principal{}, err
		}
		for _, sub := range subs {
			if sub.ProductID == nil {
				p.HasSitewideSubscription = true
				continue
			}
			if p.SubscribedProductIDs == nil {
				p.SubscribedProductIDs = make(map[uint]bool)
			}
			p.SubscribedProductIDs[*sub.ProductID] = true
		}
	}
	return p, nil
}
