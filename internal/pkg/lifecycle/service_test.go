package lifecycle

import (
	"context"
	"testing"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository with the same transition
// semantics as the GORM implementation.
type fakeRepository struct {
	purchases map[uint]*models.Purchase
	byCharge  map[string]uint
	processed map[string]struct{}
}

func newFakeRepository(purchases ...*models.Purchase) *fakeRepository {
	r := &fakeRepository{
		purchases: map[uint]*models.Purchase{},
		byCharge:  map[string]uint{},
		processed: map[string]struct{}{},
	}
	for _, p := range purchases {
		r.purchases[p.ID] = p
		if p.MerchantChargeID != nil {
			r.byCharge[*p.MerchantChargeID] = p.ID
		}
	}
	return r
}

func (r *fakeRepository) GetPurchaseByID(id uint) (*models.Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepository) GetPurchaseByMerchantChargeID(chargeID string) (*models.Purchase, error) {
	id, ok := r.byCharge[chargeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetPurchaseByID(id)
}

func (r *fakeRepository) ApplyTransition(purchaseID uint, newStatus, externalEventID string) (bool, string, *models.Purchase, error) {
	p, ok := r.purchases[purchaseID]
	if !ok {
		return false, "", nil, gorm.ErrRecordNotFound
	}
	if _, seen := r.processed[externalEventID]; seen {
		cp := *p
		return false, "", &cp, nil
	}
	r.processed[externalEventID] = struct{}{}
	fromStatus := p.Status
	p.Status = newStatus
	cp := *p
	return true, fromStatus, &cp, nil
}

func strPtr(s string) *string { return &s }

func TestStatusForEventType(t *testing.T) {
	tests := []struct {
		event  string
		status string
		ok     bool
	}{
		{EventChargeSucceeded, models.PurchaseStatusValid, true},
		{EventChargeRefunded, models.PurchaseStatusRefunded, true},
		{EventChargeDisputed, models.PurchaseStatusDisputed, true},
		{EventAccountBanned, models.PurchaseStatusBanned, true},
		{EventDisputeResolvedFavor, models.PurchaseStatusValid, true},
		{"invoice.created", "", false},
	}
	for _, tt := range tests {
		status, ok := StatusForEventType(tt.event)
		if status != tt.status || ok != tt.ok {
			t.Fatalf("StatusForEventType(%q) = %q,%v want %q,%v", tt.event, status, ok, tt.status, tt.ok)
		}
	}
}

func TestApplyStatusEventRefund(t *testing.T) {
	repo := newFakeRepository(&models.Purchase{
		ID: 1, ProductID: 10, Status: models.PurchaseStatusValid,
		MerchantChargeID: strPtr("ch_123"),
	})
	svc := NewService(repo)

	res, err := svc.ApplyStatusEvent(context.Background(), Lookup{MerchantChargeID: "ch_123"}, models.PurchaseStatusRefunded, "evt_1")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PurchaseStatusRefunded, res.Purchase.Status)
	assert.True(t, res.RevokeRole, "leaving an access-granting status must revoke the synced role")
	assert.False(t, res.GrantRole)
}

func TestApplyStatusEventIdempotent(t *testing.T) {
	repo := newFakeRepository(&models.Purchase{
		ID: 1, Status: models.PurchaseStatusValid, MerchantChargeID: strPtr("ch_123"),
	})
	svc := NewService(repo)

	res, err := svc.ApplyStatusEvent(context.Background(), Lookup{MerchantChargeID: "ch_123"}, models.PurchaseStatusRefunded, "evt_1")
	require.NoError(t, err)
	require.True(t, res.Applied)

	// Replaying evt_1 leaves status refunded and reports nothing to revoke.
	res, err = svc.ApplyStatusEvent(context.Background(), Lookup{MerchantChargeID: "ch_123"}, models.PurchaseStatusRefunded, "evt_1")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.PurchaseStatusRefunded, res.Purchase.Status)
	assert.False(t, res.RevokeRole)
}

func TestApplyStatusEventGrantOnRestore(t *testing.T) {
	repo := newFakeRepository(&models.Purchase{ID: 2, Status: models.PurchaseStatusDisputed})
	svc := NewService(repo)

	res, err := svc.ApplyStatusEvent(context.Background(), Lookup{PurchaseID: 2}, models.PurchaseStatusValid, "evt_9")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.GrantRole)
	assert.False(t, res.RevokeRole)
}

// staleReadRepository serves an outdated status from the resolve read,
// imitating a racing event committed between that read and the locked
// transition.
type staleReadRepository struct {
	*fakeRepository
	staleStatus string
}

func (r *staleReadRepository) GetPurchaseByID(id uint) (*models.Purchase, error) {
	p, err := r.fakeRepository.GetPurchaseByID(id)
	if err != nil {
		return nil, err
	}
	p.Status = r.staleStatus
	return p, nil
}

func TestApplyStatusEventRoleFlagsFromLockedRead(t *testing.T) {
	// The row is already refunded; the unlocked read still sees valid.
	repo := &staleReadRepository{
		fakeRepository: newFakeRepository(&models.Purchase{ID: 3, Status: models.PurchaseStatusRefunded}),
		staleStatus:    models.PurchaseStatusValid,
	}
	svc := NewService(repo)

	res, err := svc.ApplyStatusEvent(context.Background(), Lookup{PurchaseID: 3}, models.PurchaseStatusValid, "evt_race")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.GrantRole, "restoring a refunded purchase must grant the role even when the first read was stale")
	assert.False(t, res.RevokeRole)
}

func TestApplyStatusEventUnknownPurchase(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, err := svc.ApplyStatusEvent(context.Background(), Lookup{MerchantChargeID: "ch_missing"}, models.PurchaseStatusValid, "evt_2")
	require.Error(t, err)
	assert.True(t, commerce.IsNotFound(err))
}

func TestApplyStatusEventValidation(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, err := svc.ApplyStatusEvent(context.Background(), Lookup{PurchaseID: 1}, "nonsense", "evt_3")
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))

	_, err = svc.ApplyStatusEvent(context.Background(), Lookup{PurchaseID: 1}, models.PurchaseStatusValid, " ")
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}
