package entitlements

import (
	"context"
	"testing"

	"github.com/coursekit/coursekit/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepository struct {
	users     map[uint]*models.User
	purchases map[uint][]models.Purchase
	subs      map[uint][]models.Subscription
}

func (r *fakeRepository) GetUser(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeRepository) ListPurchasesByUser(userID uint) ([]models.Purchase, error) {
	return r.purchases[userID], nil
}

func (r *fakeRepository) ListActiveSubscriptionsByOrg(orgID uint) ([]models.Subscription, error) {
	return r.subs[orgID], nil
}

func uptr(v uint) *uint { return &v }

func TestLoadPrincipal(t *testing.T) {
	repo := &fakeRepository{
		users: map[uint]*models.User{
			7: {ID: 7, Role: models.ROLE_EDITOR},
		},
		purchases: map[uint][]models.Purchase{
			7: {{ID: 1, ProductID: 42, Status: models.PurchaseStatusValid}},
		},
		subs: map[uint][]models.Subscription{
			10: {
				{OrganizationID: 10, ProductID: uptr(5), Status: models.SubscriptionStatusActive},
				{OrganizationID: 10, ProductID: nil, Status: models.SubscriptionStatusActive},
			},
		},
	}
	loader := NewLoader(repo)

	p, err := loader.LoadPrincipal(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(7), p.UserID)
	assert.True(t, p.ContentEditor)
	assert.Len(t, p.Purchases, 1)
	assert.True(t, p.SubscribedProductIDs[5])
	assert.True(t, p.HasSitewideSubscription)
}

func TestLoadPrincipalAnonymous(t *testing.T) {
	loader := NewLoader(&fakeRepository{users: map[uint]*models.User{}})

	p, err := loader.LoadPrincipal(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Zero(t, p.UserID)

	// Unknown ids degrade to the anonymous principal, not an error.
	p, err = loader.LoadPrincipal(context.Background(), 404, 0)
	require.NoError(t, err)
	assert.Zero(t, p.UserID)
}

func TestLoadPrincipalIgnoresOtherOrgs(t *testing.T) {
	repo := &fakeRepository{
		users: map[uint]*models.User{7: {ID: 7, Role: models.ROLE_USER}},
		subs: map[uint][]models.Subscription{
			20: {{OrganizationID: 20, Status: models.SubscriptionStatusActive}},
		},
	}
	loader := NewLoader(repo)

	p, err := loader.LoadPrincipal(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.False(t, p.HasSitewideSubscription, "only the current org's subscriptions count")
}
