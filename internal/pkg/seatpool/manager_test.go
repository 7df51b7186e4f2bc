package seatpool

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository mirrors the GORM implementation's claim semantics,
// including the atomic check-and-increment under a mutex.
type fakeRepository struct {
	mu        sync.Mutex
	coupon    *models.Coupon
	owner     *models.Purchase
	users     map[string]uint
	purchases []*models.Purchase
	nextID    uint
}

func newFakeRepository(totalSeats, usedSeats int) *fakeRepository {
	owner := &models.Purchase{ID: 1, ProductID: 42, Status: models.PurchaseStatusValid}
	ownerID := owner.ID
	return &fakeRepository{
		coupon: &models.Coupon{
			ID: 10, MaxUses: totalSeats, UsedCount: usedSeats,
			BulkOwnerPurchaseID: &ownerID,
		},
		owner:  owner,
		users:  map[string]uint{},
		nextID: 100,
	}
}

func (r *fakeRepository) GetBulkCoupon(poolID uint) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if poolID != r.coupon.ID {
		return nil, errPoolMissing
	}
	cp := *r.coupon
	return &cp, nil
}

func (r *fakeRepository) ClaimSeat(poolID uint, inviteeEmail string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if poolID != r.coupon.ID {
		return nil, errPoolMissing
	}
	if r.coupon.MaxUses >= 0 && r.coupon.UsedCount >= r.coupon.MaxUses {
		return nil, errPoolExhausted
	}
	r.coupon.UsedCount++

	userID, ok := r.users[inviteeEmail]
	if !ok {
		r.nextID++
		userID = r.nextID
		r.users[inviteeEmail] = userID
	}
	r.nextID++
	poolRef := poolID
	p := &models.Purchase{
		ID: r.nextID, ProductID: r.owner.ProductID, UserID: &userID,
		Status: models.PurchaseStatusValid, BulkSeatPoolID: &poolRef,
		RedeemedCouponID: &r.coupon.ID, InviteeEmail: inviteeEmail,
	}
	r.purchases = append(r.purchases, p)
	return p, nil
}

func (r *fakeRepository) ReclaimSeat(poolID, purchaseID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.ID == purchaseID {
			if p.BulkSeatPoolID == nil || *p.BulkSeatPoolID != poolID {
				return errWrongPool
			}
			if p.Status == models.PurchaseStatusRefunded {
				return errSeatReclaimed
			}
			if r.coupon.UsedCount > 0 {
				r.coupon.UsedCount--
			}
			p.Status = models.PurchaseStatusRefunded
			return nil
		}
	}
	return errWrongPool
}

func TestClaimSeatConsumesCapacity(t *testing.T) {
	repo := newFakeRepository(10, 9)
	mgr := NewManager(repo)
	ctx := context.Background()

	purchase, err := mgr.ClaimSeat(ctx, 10, "invitee@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusValid, purchase.Status)
	assert.Equal(t, uint(42), purchase.ProductID)
	require.NotNil(t, purchase.BulkSeatPoolID)
	assert.Equal(t, uint(10), *purchase.BulkSeatPoolID)

	free, err := mgr.AvailableSeats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, free)

	// The 11th claim must fail with a seat conflict.
	_, err = mgr.ClaimSeat(ctx, 10, "late@example.com")
	require.Error(t, err)
	assert.True(t, commerce.IsConflict(err))
	assert.ErrorIs(t, err, ErrNoSeatsAvailable)
}

func TestClaimSeatConcurrentLastSeat(t *testing.T) {
	repo := newFakeRepository(5, 4)
	mgr := NewManager(repo)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := mgr.ClaimSeat(context.Background(), 10, "racer@example.com")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrNoSeatsAvailable)
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one claim must win the last seat")
	assert.Equal(t, racers-1, losses)
}

func TestClaimSeatUnknownPool(t *testing.T) {
	mgr := NewManager(newFakeRepository(5, 0))

	_, err := mgr.ClaimSeat(context.Background(), 99, "someone@example.com")
	require.Error(t, err)
	assert.True(t, commerce.IsNotFound(err))
}

func TestClaimSeatInvalidEmail(t *testing.T) {
	mgr := NewManager(newFakeRepository(5, 0))

	_, err := mgr.ClaimSeat(context.Background(), 10, "not-an-email")
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}

func TestReclaimSeatFreesCapacity(t *testing.T) {
	repo := newFakeRepository(2, 0)
	mgr := NewManager(repo)
	ctx := context.Background()

	claimed, err := mgr.ClaimSeat(ctx, 10, "member@example.com")
	require.NoError(t, err)

	require.NoError(t, mgr.ReclaimSeat(ctx, 10, claimed.ID))

	free, err := mgr.AvailableSeats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, free)

	// The claim row survives as a refunded audit record.
	assert.Equal(t, models.PurchaseStatusRefunded, repo.purchases[0].Status)
}

func TestReclaimSeatOnlyFreesOnce(t *testing.T) {
	repo := newFakeRepository(2, 0)
	mgr := NewManager(repo)
	ctx := context.Background()

	first, err := mgr.ClaimSeat(ctx, 10, "one@example.com")
	require.NoError(t, err)
	second, err := mgr.ClaimSeat(ctx, 10, "two@example.com")
	require.NoError(t, err)

	require.NoError(t, mgr.ReclaimSeat(ctx, 10, first.ID))

	// Running the reclaim again must not mint a seat out of thin air.
	err = mgr.ReclaimSeat(ctx, 10, first.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeatAlreadyReclaimed)
	assert.True(t, commerce.IsConflict(err))

	free, err := mgr.AvailableSeats(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, free)
	assert.Equal(t, models.PurchaseStatusValid, second.Status)
}

func TestReclaimSeatWrongPool(t *testing.T) {
	repo := newFakeRepository(2, 0)
	mgr := NewManager(repo)

	err := mgr.ReclaimSeat(context.Background(), 10, 555)
	require.Error(t, err)
	assert.True(t, commerce.IsConflict(err))
}

func TestAvailableSeatsNeverNegative(t *testing.T) {
	repo := newFakeRepository(3, 5) // oversold pool, upstream bug
	mgr := NewManager(repo)

	free, err := mgr.AvailableSeats(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, free)
}

func TestClaimSeatNormalizesEmail(t *testing.T) {
	repo := newFakeRepository(3, 0)
	mgr := NewManager(repo)

	p, err := mgr.ClaimSeat(context.Background(), 10, "  Mixed.Case@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower("Mixed.Case@Example.COM"), p.InviteeEmail)
}
