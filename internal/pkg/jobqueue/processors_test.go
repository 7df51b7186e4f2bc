package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/commerce"
	"github.com/coursekit/coursekit/internal/pkg/lifecycle"
)

type fakeEntitlements struct {
	purchases map[uint]*models.Purchase
	users     map[uint]*models.User
}

func (f *fakeEntitlements) GetPurchase(ctx context.Context, id uint) (*models.Purchase, error) {
	p, ok := f.purchases[id]
	if !ok {
		return nil, commerce.NewNotFound("purchase_not_found", "no such purchase")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeEntitlements) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, commerce.NewNotFound("user_not_found", "no such user")
	}
	cp := *u
	return &cp, nil
}

type fakeRoleClient struct {
	grants  []string
	revokes []string
}

func (f *fakeRoleClient) GrantRole(ctx context.Context, platformUserID string) error {
	f.grants = append(f.grants, platformUserID)
	return nil
}

func (f *fakeRoleClient) RevokeRole(ctx context.Context, platformUserID string) error {
	f.revokes = append(f.revokes, platformUserID)
	return nil
}

type fakeLifecycleRepo struct {
	purchase *models.Purchase
	applied  bool
}

func (f *fakeLifecycleRepo) GetPurchaseByID(id uint) (*models.Purchase, error) {
	if f.purchase == nil || f.purchase.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f.purchase
	return &cp, nil
}

func (f *fakeLifecycleRepo) GetPurchaseByMerchantChargeID(chargeID string) (*models.Purchase, error) {
	if f.purchase == nil || f.purchase.MerchantChargeID == nil || *f.purchase.MerchantChargeID != chargeID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f.purchase
	return &cp, nil
}

func (f *fakeLifecycleRepo) ApplyTransition(purchaseID uint, newStatus, externalEventID string) (bool, string, *models.Purchase, error) {
	cp := *f.purchase
	fromStatus := cp.Status
	if f.applied {
		cp.Status = newStatus
	}
	return f.applied, fromStatus, &cp, nil
}

func uptr(v uint) *uint { return &v }
func sptr(v string) *string {
	return &v
}

func roleSyncJob(payload RoleSyncJobPayload) *Job {
	return &Job{
		ID:         "job-1",
		Type:       JobTypeRoleSync,
		Status:     JobStatusProcessing,
		Payload:    payload.ToMap(),
		MaxRetries: DefaultMaxRetries,
	}
}

func TestRoleSyncRevokesLinkedUser(t *testing.T) {
	roles := &fakeRoleClient{}
	q := &Queue{deps: Deps{
		RoleSync: roles,
		Entitlements: &fakeEntitlements{
			purchases: map[uint]*models.Purchase{
				10: {ID: 10, UserID: uptr(7), Status: models.PurchaseStatusRefunded},
			},
			users: map[uint]*models.User{
				7: {ID: 7, ChatPlatformID: "chat-7"},
			},
		},
	}}

	err := q.processRoleSyncJob(context.Background(),
		roleSyncJob(RoleSyncJobPayload{PurchaseID: 10, UserID: 7, Op: RoleSyncRevoke}))
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-7"}, roles.revokes)
	assert.Empty(t, roles.grants)
}

func TestRoleSyncDropsStaleRevoke(t *testing.T) {
	// The purchase regained access while the revoke waited out its grace
	// period, so the revoke must not run.
	roles := &fakeRoleClient{}
	q := &Queue{deps: Deps{
		RoleSync: roles,
		Entitlements: &fakeEntitlements{
			purchases: map[uint]*models.Purchase{
				10: {ID: 10, UserID: uptr(7), Status: models.PurchaseStatusValid},
			},
			users: map[uint]*models.User{
				7: {ID: 7, ChatPlatformID: "chat-7"},
			},
		},
	}}

	err := q.processRoleSyncJob(context.Background(),
		roleSyncJob(RoleSyncJobPayload{PurchaseID: 10, UserID: 7, Op: RoleSyncRevoke}))
	require.NoError(t, err)
	assert.Empty(t, roles.revokes)
}

func TestRoleSyncSkipsUnlinkedUser(t *testing.T) {
	roles := &fakeRoleClient{}
	q := &Queue{deps: Deps{
		RoleSync: roles,
		Entitlements: &fakeEntitlements{
			purchases: map[uint]*models.Purchase{
				10: {ID: 10, UserID: uptr(7), Status: models.PurchaseStatusValid},
			},
			users: map[uint]*models.User{
				7: {ID: 7, ChatPlatformID: ""},
			},
		},
	}}

	err := q.processRoleSyncJob(context.Background(),
		roleSyncJob(RoleSyncJobPayload{PurchaseID: 10, UserID: 7, Op: RoleSyncGrant}))
	require.NoError(t, err)
	assert.Empty(t, roles.grants)
}

func TestRoleSyncRejectsUnknownOp(t *testing.T) {
	q := &Queue{}

	err := q.processRoleSyncJob(context.Background(),
		roleSyncJob(RoleSyncJobPayload{PurchaseID: 10, UserID: 7, Op: "promote"}))
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}

func TestRoleSyncNotBeforeSurvivesPayloadRoundTrip(t *testing.T) {
	due := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	payload := RoleSyncJobPayload{PurchaseID: 3, UserID: 4, Op: RoleSyncRevoke, NotBefore: &due}

	decoded, err := RoleSyncJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	require.NotNil(t, decoded.NotBefore)
	assert.True(t, decoded.NotBefore.Equal(due))
}

func TestChargeEventIgnoresUnhandledType(t *testing.T) {
	q := &Queue{}

	err := q.handleChargeEvent(context.Background(), &ProcessorEventJobPayload{
		EventID:   "evt_1",
		EventType: "charge.updated",
		ChargeID:  "ch_1",
	})
	require.NoError(t, err)
}

func TestChargeEventRequiresChargeID(t *testing.T) {
	q := &Queue{}

	err := q.handleChargeEvent(context.Background(), &ProcessorEventJobPayload{
		EventID:   "evt_1",
		EventType: lifecycle.EventChargeRefunded,
	})
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}

func TestChargeEventReplaySkipsSideEffects(t *testing.T) {
	// A replayed event comes back Applied=false; no role sync or
	// notification jobs may be enqueued for it.
	repo := &fakeLifecycleRepo{
		purchase: &models.Purchase{
			ID:               10,
			UserID:           uptr(7),
			Status:           models.PurchaseStatusValid,
			MerchantChargeID: sptr("ch_1"),
		},
		applied: false,
	}
	q := &Queue{deps: Deps{Lifecycle: lifecycle.NewService(repo)}}

	err := q.handleChargeEvent(context.Background(), &ProcessorEventJobPayload{
		EventID:   "evt_1",
		EventType: lifecycle.EventChargeRefunded,
		ChargeID:  "ch_1",
	})
	require.NoError(t, err)
}

func TestNotificationRequiresRecipient(t *testing.T) {
	q := &Queue{}

	err := q.processNotificationJob(context.Background(), &Job{
		ID:      "job-2",
		Type:    JobTypeNotification,
		Payload: NotificationJobPayload{Subject: "hi"}.ToMap(),
	})
	require.Error(t, err)
	assert.True(t, commerce.IsValidation(err))
}

func TestValidationFailureIsNotRetryable(t *testing.T) {
	job := &Job{MaxRetries: DefaultMaxRetries}
	job.MarkAsFailed("bad_payload: invalid role sync payload")
	job.RetryCount = job.MaxRetries

	assert.False(t, job.IsRetryable())
}
