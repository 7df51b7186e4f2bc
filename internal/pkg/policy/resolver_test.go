package policy

import (
	"testing"
	"time"

	"github.com/coursekit/coursekit/app/models"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func uptr(v uint) *uint { return &v }

func published(owningProduct *uint) *models.ContentResource {
	return &models.ContentResource{
		ID:              1,
		Visibility:      models.ContentVisibilityPublic,
		State:           models.ContentStatePublished,
		OwnerUserID:     50,
		OwningProductID: owningProduct,
	}
}

func buyerOf(productID uint) Principal {
	return Principal{
		UserID: 7,
		Role:   models.ROLE_USER,
		Purchases: []models.Purchase{
			{ProductID: productID, Status: models.PurchaseStatusValid},
		},
	}
}

func TestAdminManagesEverything(t *testing.T) {
	admin := Principal{UserID: 1, Role: models.ROLE_ADMIN}
	res := &models.ContentResource{State: models.ContentStateDraft, Visibility: models.ContentVisibilityPrivate}

	for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage} {
		if !Can(admin, action, ContentRef(res), now) {
			t.Fatalf("admin must be allowed %s", action)
		}
	}
	if !Can(admin, ActionRead, UserRef(999), now) {
		t.Fatalf("admin must read any user")
	}
}

func TestDefaultDenyPrivateContent(t *testing.T) {
	res := &models.ContentResource{
		Visibility:  models.ContentVisibilityPrivate,
		State:       models.ContentStatePublished,
		OwnerUserID: 50,
	}
	nonOwner := Principal{UserID: 7, Role: models.ROLE_USER}

	if Can(nonOwner, ActionRead, ContentRef(res), now) {
		t.Fatalf("private content must deny non-owners")
	}

	owner := Principal{UserID: 50, Role: models.ROLE_USER}
	if !Can(owner, ActionRead, ContentRef(res), now) {
		t.Fatalf("private content must stay readable to its owner")
	}

	editor := Principal{UserID: 8, Role: models.ROLE_USER, ContentEditor: true}
	if !Can(editor, ActionRead, ContentRef(res), now) {
		t.Fatalf("editors read private content")
	}
}

func TestUnpublishedContentHidden(t *testing.T) {
	for _, state := range []string{
		models.ContentStateDraft, models.ContentStateArchived, models.ContentStateDeleted,
	} {
		res := &models.ContentResource{
			Visibility: models.ContentVisibilityPublic, State: state, OwnerUserID: 50,
		}
		reader := Principal{UserID: 7, Role: models.ROLE_USER}
		if Can(reader, ActionRead, ContentRef(res), now) {
			t.Fatalf("state %q must deny plain readers", state)
		}
	}
}

func TestProductGatedRead(t *testing.T) {
	res := published(uptr(42))

	if !Can(buyerOf(42), ActionRead, ContentRef(res), now) {
		t.Fatalf("valid purchase of the owning product must grant read")
	}
	if Can(buyerOf(41), ActionRead, ContentRef(res), now) {
		t.Fatalf("purchase of another product must not grant read")
	}

	restricted := buyerOf(42)
	restricted.Purchases[0].Status = models.PurchaseStatusRestricted
	if !Can(restricted, ActionRead, ContentRef(res), now) {
		t.Fatalf("restricted purchases keep read access")
	}

	refunded := buyerOf(42)
	refunded.Purchases[0].Status = models.PurchaseStatusRefunded
	if Can(refunded, ActionRead, ContentRef(res), now) {
		t.Fatalf("refunded purchases must lose read access")
	}
}

func TestSeatPoolClaimGrantsRead(t *testing.T) {
	res := published(uptr(42))
	claimer := Principal{
		UserID: 9,
		Role:   models.ROLE_USER,
		Purchases: []models.Purchase{
			{ProductID: 42, Status: models.PurchaseStatusValid, BulkSeatPoolID: uptr(3)},
		},
	}
	if !Can(claimer, ActionRead, ContentRef(res), now) {
		t.Fatalf("seat-pool claimed purchases grant read like direct ones")
	}
}

func TestOrgSubscriptionGrantsRead(t *testing.T) {
	res := published(uptr(42))

	scoped := Principal{UserID: 7, Role: models.ROLE_USER, SubscribedProductIDs: map[uint]bool{42: true}}
	if !Can(scoped, ActionRead, ContentRef(res), now) {
		t.Fatalf("product-scoped org subscription must grant read")
	}

	sitewide := Principal{UserID: 7, Role: models.ROLE_USER, HasSitewideSubscription: true}
	if !Can(sitewide, ActionRead, ContentRef(res), now) {
		t.Fatalf("sitewide org subscription must grant read")
	}

	other := Principal{UserID: 7, Role: models.ROLE_USER, SubscribedProductIDs: map[uint]bool{41: true}}
	if Can(other, ActionRead, ContentRef(res), now) {
		t.Fatalf("subscription to another product must not grant read")
	}
}

func TestFreeContentReadable(t *testing.T) {
	res := published(nil)
	anon := Principal{}
	if !Can(anon, ActionRead, ContentRef(res), now) {
		t.Fatalf("published public content without an owning product is free")
	}
}

func TestScheduledContentPendingOpenAccess(t *testing.T) {
	future := now.Add(48 * time.Hour)
	res := published(nil)
	res.ScheduledStartAt = &future

	reader := Principal{UserID: 7, Role: models.ROLE_USER}
	if Can(reader, ActionRead, ContentRef(res), now) {
		t.Fatalf("future-scheduled content must deny full read")
	}
	if !CanPendingOpenAccess(reader, res, now) {
		t.Fatalf("the coming-soon teaser must stay visible")
	}

	// Editors skip the schedule gate entirely.
	editor := Principal{UserID: 8, Role: models.ROLE_USER, ContentEditor: true}
	if !Can(editor, ActionRead, ContentRef(res), now) {
		t.Fatalf("editors read scheduled content early")
	}

	// Once the start time passes, the gate lifts and the teaser grant ends.
	later := future.Add(time.Minute)
	if !Can(reader, ActionRead, ContentRef(res), later) {
		t.Fatalf("content must open after its start time")
	}
	if CanPendingOpenAccess(reader, res, later) {
		t.Fatalf("teaser access ends when the content opens")
	}
}

func TestPendingOpenAccessRespectsVisibility(t *testing.T) {
	future := now.Add(time.Hour)
	res := &models.ContentResource{
		Visibility:       models.ContentVisibilityPrivate,
		State:            models.ContentStatePublished,
		OwnerUserID:      50,
		ScheduledStartAt: &future,
	}
	stranger := Principal{UserID: 7}
	if CanPendingOpenAccess(stranger, res, now) {
		t.Fatalf("private scheduled content must not leak a teaser")
	}
	owner := Principal{UserID: 50}
	if !CanPendingOpenAccess(owner, res, now) {
		t.Fatalf("the owner keeps teaser access")
	}
}

func TestUserReadRule(t *testing.T) {
	me := Principal{UserID: 7, Role: models.ROLE_USER}
	if !Can(me, ActionRead, UserRef(7), now) {
		t.Fatalf("users read their own record")
	}
	if Can(me, ActionRead, UserRef(8), now) {
		t.Fatalf("users must not read other users")
	}
}

func TestEditorCreatesContent(t *testing.T) {
	editor := Principal{UserID: 8, Role: models.ROLE_USER, ContentEditor: true}
	if !Can(editor, ActionCreate, ResourceRef{Subject: SubjectContent}, now) {
		t.Fatalf("editors create content")
	}
	plain := Principal{UserID: 7, Role: models.ROLE_USER}
	if Can(plain, ActionCreate, ResourceRef{Subject: SubjectContent}, now) {
		t.Fatalf("plain users must not create content")
	}
}

func TestEditorMutatesOnlyOwnContent(t *testing.T) {
	res := published(nil)
	res.OwnerUserID = 8

	owner := Principal{UserID: 8, ContentEditor: true}
	if !Can(owner, ActionUpdate, ContentRef(res), now) {
		t.Fatalf("editors update their own content")
	}

	otherEditor := Principal{UserID: 9, ContentEditor: true}
	if Can(otherEditor, ActionDelete, ContentRef(res), now) {
		t.Fatalf("editors must not delete others' content")
	}
}

func TestDefaultDeny(t *testing.T) {
	nobody := Principal{}
	if Can(nobody, ActionManage, ResourceRef{Subject: SubjectAll}, now) {
		t.Fatalf("default must deny")
	}
	if Can(nobody, ActionRead, ResourceRef{Subject: Subject("Unknown")}, now) {
		t.Fatalf("unknown subjects deny")
	}
}
