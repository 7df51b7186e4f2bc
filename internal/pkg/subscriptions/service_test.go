package subscriptions

import (
	"context"
	"testing"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepository struct {
	memberships map[uint][]models.OrganizationMembership
	subs        map[string]*models.Subscription
	orgChecks   []uint
	nextID      uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		memberships: map[uint][]models.OrganizationMembership{},
		subs:        map[string]*models.Subscription{},
	}
}

func (r *fakeRepository) addMembership(userID, orgID uint) {
	r.memberships[userID] = append(r.memberships[userID],
		models.OrganizationMembership{UserID: userID, OrganizationID: orgID, Role: models.OrgRoleMember})
}

func (r *fakeRepository) addSubscription(orgID uint, externalID, status string) {
	r.nextID++
	r.subs[externalID] = &models.Subscription{
		ID: r.nextID, OrganizationID: orgID, ExternalSubscriptionID: externalID, Status: status,
	}
}

func (r *fakeRepository) ListMembershipsByUser(userID uint) ([]models.OrganizationMembership, error) {
	return r.memberships[userID], nil
}

func (r *fakeRepository) OrgHasActiveSubscription(orgID uint) (bool, error) {
	r.orgChecks = append(r.orgChecks, orgID)
	for _, s := range r.subs {
		if s.OrganizationID == orgID && s.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) UpsertSubscription(sub *models.Subscription) error {
	if existing, ok := r.subs[sub.ExternalSubscriptionID]; ok {
		sub.ID = existing.ID
	} else {
		r.nextID++
		sub.ID = r.nextID
	}
	cp := *sub
	r.subs[sub.ExternalSubscriptionID] = &cp
	return nil
}

func (r *fakeRepository) GetByExternalID(externalID string) (*models.Subscription, error) {
	s, ok := r.subs[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepository) ListByOrganization(orgID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range r.subs {
		if s.OrganizationID == orgID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func TestHasActiveSubscription(t *testing.T) {
	repo := newFakeRepository()
	repo.addMembership(1, 10)
	repo.addMembership(1, 20)
	repo.addSubscription(20, "sub_a", models.SubscriptionStatusActive)
	svc := NewService(repo)

	active, err := svc.HasActiveSubscription(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestHasActiveSubscriptionShortCircuits(t *testing.T) {
	repo := newFakeRepository()
	repo.addMembership(1, 10)
	repo.addMembership(1, 20)
	repo.addSubscription(10, "sub_a", models.SubscriptionStatusActive)
	svc := NewService(repo)

	active, err := svc.HasActiveSubscription(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, []uint{10}, repo.orgChecks, "first entitling org must stop the scan")
}

func TestHasActiveSubscriptionNonActiveStatuses(t *testing.T) {
	repo := newFakeRepository()
	repo.addMembership(1, 10)
	for i, status := range []string{
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusUnpaid,
		models.SubscriptionStatusCanceled,
		models.SubscriptionStatusIncomplete,
		models.SubscriptionStatusIncompleteExpired,
		models.SubscriptionStatusTrialing,
	} {
		repo.addSubscription(10, "sub_"+string(rune('a'+i)), status)
	}
	svc := NewService(repo)

	active, err := svc.HasActiveSubscription(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, active, "only status=active entitles an organization")
}

func TestHasActiveSubscriptionNoMemberships(t *testing.T) {
	svc := NewService(newFakeRepository())

	active, err := svc.HasActiveSubscription(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSyncSubscriptionUpsert(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	sub, err := svc.SyncSubscription(ctx, NormalizedSubscription{
		OrganizationID:         10,
		ExternalSubscriptionID: "sub_ext",
		Status:                 models.SubscriptionStatusActive,
	})
	require.NoError(t, err)
	firstID := sub.ID

	// A later event for the same external id updates in place.
	sub, err = svc.SyncSubscription(ctx, NormalizedSubscription{
		OrganizationID:         10,
		ExternalSubscriptionID: "sub_ext",
		Status:                 models.SubscriptionStatusPastDue,
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, sub.ID)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
}

func TestSyncSubscriptionValidation(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()

	_, err := svc.SyncSubscription(ctx, NormalizedSubscription{ExternalSubscriptionID: "sub_x"})
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))

	_, err = svc.SyncSubscription(ctx, NormalizedSubscription{
		OrganizationID: 10, ExternalSubscriptionID: "sub_x", Status: "bogus",
	})
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}
