package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepository struct {
	purchases map[uint]*models.Purchase
	users     map[uint]*models.User
	transfers map[uint]*models.PurchaseTransfer
	nextID    uint
}

func newFakeRepository(purchases ...*models.Purchase) *fakeRepository {
	r := &fakeRepository{
		purchases: map[uint]*models.Purchase{},
		users:     map[uint]*models.User{},
		transfers: map[uint]*models.PurchaseTransfer{},
		nextID:    1,
	}
	for _, p := range purchases {
		r.purchases[p.ID] = p
	}
	return r
}

func (r *fakeRepository) addUser(id uint, email string) {
	r.users[id] = &models.User{ID: id, Email: email}
}

func (r *fakeRepository) GetPurchase(id uint) (*models.Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepository) GetTransfer(id uint) (*models.PurchaseTransfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepository) GetUser(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepository) OpenTransfer(t *models.PurchaseTransfer, now time.Time) error {
	for _, open := range r.transfers {
		if open.PurchaseID != t.PurchaseID || open.IsTerminal() {
			continue
		}
		if open.State == models.TransferStateInitiated {
			if !open.IsPastExpiry(now) {
				return errTransferOpen
			}
			open.State = models.TransferStateExpired
			break
		}
		open.SourceUserID = t.SourceUserID
		open.TargetEmail = t.TargetEmail
		open.State = models.TransferStateInitiated
		open.ExpiresAt = t.ExpiresAt
		*t = *open
		return nil
	}
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *fakeRepository) SaveTransfer(t *models.PurchaseTransfer) error {
	cp := *t
	r.transfers[t.ID] = &cp
	return nil
}

func (r *fakeRepository) ConfirmTransfer(t *models.PurchaseTransfer, confirmingUserID uint) error {
	stored := r.transfers[t.ID]
	if stored == nil || stored.State != models.TransferStateInitiated {
		return gorm.ErrRecordNotFound
	}
	r.purchases[stored.PurchaseID].UserID = &confirmingUserID
	now := time.Now()
	stored.State = models.TransferStateConfirmed
	stored.CompletedAt = &now
	t.State = stored.State
	t.CompletedAt = stored.CompletedAt
	return nil
}

func (r *fakeRepository) ExpireOverdue(now time.Time) (int64, error) {
	var n int64
	for _, t := range r.transfers {
		if !t.IsTerminal() && t.IsPastExpiry(now) {
			t.State = models.TransferStateExpired
			n++
		}
	}
	return n, nil
}

func uptr(v uint) *uint { return &v }

func directPurchase(id, owner uint) *models.Purchase {
	return &models.Purchase{ID: id, ProductID: 1, UserID: uptr(owner), Status: models.PurchaseStatusValid}
}

func TestInitiateCreatesSevenDayWindow(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	svc := NewService(repo)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	tr, err := svc.Initiate(context.Background(), 1, 7, "new-owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStateInitiated, tr.State)
	assert.Equal(t, "new-owner@example.com", tr.TargetEmail)
	require.NotNil(t, tr.ExpiresAt)
	assert.Equal(t, start.Add(7*24*time.Hour), *tr.ExpiresAt)
	assert.NotEmpty(t, tr.Token)
}

func TestInitiateRejectsSeatPoolPurchase(t *testing.T) {
	pooled := directPurchase(1, 7)
	pooled.BulkSeatPoolID = uptr(3)
	svc := NewService(newFakeRepository(pooled))

	_, err := svc.Initiate(context.Background(), 1, 7, "x@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSeatPoolPurchase)
}

func TestInitiateRejectsNonOwner(t *testing.T) {
	svc := NewService(newFakeRepository(directPurchase(1, 7)))

	_, err := svc.Initiate(context.Background(), 1, 8, "x@example.com")
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}

func TestInitiateExclusivity(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Initiate(ctx, 1, 7, "first@example.com")
	require.NoError(t, err)

	// Second initiate while the first is non-terminal is a conflict.
	_, err = svc.Initiate(ctx, 1, 7, "second@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransferPending)
	assert.True(t, commerce.IsConflict(err))
}

func TestInitiateExpiresStaleWindowInline(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	svc := NewService(repo)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	ctx := context.Background()

	stale, err := svc.Initiate(ctx, 1, 7, "first@example.com")
	require.NoError(t, err)

	// Past the window the open slot is free again; the lapsed transfer is
	// swept into the expired state rather than blocking the new one.
	svc.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }
	fresh, err := svc.Initiate(ctx, 1, 7, "second@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)
	assert.Equal(t, "second@example.com", fresh.TargetEmail)
	assert.Equal(t, models.TransferStateExpired, repo.transfers[stale.ID].State)
}

func TestCancelThenReinitiate(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.Initiate(ctx, 1, 7, "first@example.com")
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStateCanceled, canceled.State)

	// Canceled is terminal, so a fresh transfer may open.
	_, err = svc.Initiate(ctx, 1, 7, "second@example.com")
	require.NoError(t, err)

	// Cancel on a terminal transfer is rejected.
	_, err = svc.Cancel(ctx, first.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTransferable)
}

func TestConfirmReassignsOwnership(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	repo.addUser(99, "new-owner@example.com")
	svc := NewService(repo)
	ctx := context.Background()

	tr, err := svc.Initiate(ctx, 1, 7, "new-owner@example.com")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, tr.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStateConfirmed, confirmed.State)
	require.NotNil(t, repo.purchases[1].UserID)
	assert.Equal(t, uint(99), *repo.purchases[1].UserID)

	// Duplicate confirm is a conflict, not a second reassignment.
	_, err = svc.Confirm(ctx, tr.ID, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTransferable)
	assert.Equal(t, uint(99), *repo.purchases[1].UserID)
}

func TestConfirmRejectsUninvitedUser(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	repo.addUser(99, "invited@example.com")
	repo.addUser(999, "stranger@example.com")
	svc := NewService(repo)
	ctx := context.Background()

	tr, err := svc.Initiate(ctx, 1, 7, "invited@example.com")
	require.NoError(t, err)

	// A logged-in user who was not invited cannot take the purchase,
	// and neither can an id with no account behind it.
	_, err = svc.Confirm(ctx, tr.ID, 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTransferTarget)
	assert.Equal(t, uint(7), *repo.purchases[1].UserID)

	_, err = svc.Confirm(ctx, tr.ID, 1234)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTransferTarget)

	// The transfer stays open for the invited recipient.
	confirmed, err := svc.Confirm(ctx, tr.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStateConfirmed, confirmed.State)
	assert.Equal(t, uint(99), *repo.purchases[1].UserID)
}

func TestConfirmMatchesTargetEmailCaseInsensitively(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	repo.addUser(42, "  Invited@Example.COM ")
	svc := NewService(repo)
	ctx := context.Background()

	tr, err := svc.Initiate(ctx, 1, 7, "invited@example.com")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, tr.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStateConfirmed, confirmed.State)
}

func TestConfirmAfterExpiry(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7))
	svc := NewService(repo)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	ctx := context.Background()

	tr, err := svc.Initiate(ctx, 1, 7, "slow@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }

	_, err = svc.Confirm(ctx, tr.ID, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransferExpired)

	// The transfer is now terminally expired and ownership never moved.
	stored, err := repo.GetTransfer(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStateExpired, stored.State)
	assert.Equal(t, uint(7), *repo.purchases[1].UserID)
}

func TestConfirmUnknownTransfer(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, err := svc.Confirm(context.Background(), 404, 1)
	require.Error(t, err)
	assert.True(t, commerce.IsNotFound(err))
}

func TestExpireOverdueSweep(t *testing.T) {
	repo := newFakeRepository(directPurchase(1, 7), directPurchase(2, 8))
	svc := NewService(repo)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	ctx := context.Background()

	overdue, err := svc.Initiate(ctx, 1, 7, "late@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(5 * 24 * time.Hour) }
	fresh, err := svc.Initiate(ctx, 2, 8, "fresh@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }
	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, models.TransferStateExpired, repo.transfers[overdue.ID].State)
	assert.Equal(t, models.TransferStateInitiated, repo.transfers[fresh.ID].State)
}
