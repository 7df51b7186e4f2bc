package policy

import (
	"time"

	"github.com/coursekit/coursekit/app/models"
)

// Action is a permission verb.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Subject is an abstract permission target.
type Subject string

const (
	SubjectAll     Subject = "all"
	SubjectContent Subject = "Content"
	SubjectUser    Subject = "User"
)

// Principal is the pre-fetched entitlement snapshot of a caller. The
// resolver performs no I/O: purchases and subscription entitlements are
// loaded by the caller (see the entitlements package) before every check.
type Principal struct {
	UserID        uint
	Role          string
	ContentEditor bool

	// Purchases is the principal's full purchase history, direct and
	// seat-pool claimed alike.
	Purchases []models.Purchase

	// SubscribedProductIDs are products entitled through the current
	// organization's active subscriptions. HasSitewideSubscription is set
	// when an active subscription is not scoped to one product.
	SubscribedProductIDs    map[uint]bool
	HasSitewideSubscription bool
}

// IsAdmin reports whether the principal holds the platform admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.ROLE_ADMIN
}

// ownsProduct reports whether an access-granting purchase covers productID.
func (p Principal) ownsProduct(productID uint) bool {
	for i := range p.Purchases {
		if p.Purchases[i].ProductID == productID && p.Purchases[i].GrantsAccess() {
			return true
		}
	}
	return false
}

// subscribedToProduct reports whether the current org entitles productID.
func (p Principal) subscribedToProduct(productID uint) bool {
	return p.HasSitewideSubscription || p.SubscribedProductIDs[productID]
}

// ResourceRef names what a permission check targets: an abstract subject, a
// concrete content resource, or a specific user id.
type ResourceRef struct {
	Subject Subject
	Content *models.ContentResource
	UserID  uint
}

// ContentRef wraps a concrete content resource.
func ContentRef(res *models.ContentResource) ResourceRef {
	return ResourceRef{Subject: SubjectContent, Content: res}
}

// UserRef targets one user's data.
func UserRef(userID uint) ResourceRef {
	return ResourceRef{Subject: SubjectUser, UserID: userID}
}

// Can resolves a permission decision from an ordered rule chain, first
// match wins, default deny. Pure and side-effect-free: it runs on every
// content request and must never touch the network or database.
func Can(p Principal, action Action, ref ResourceRef, now time.Time) bool {
	// Rule 1: platform admins manage everything.
	if p.IsAdmin() {
		return true
	}

	if ref.Subject == SubjectContent {
		return canContent(p, action, ref.Content, now)
	}

	if ref.Subject == SubjectUser && action == ActionRead {
		// Rule 5: a user's data is readable only by that user.
		return ref.UserID != 0 && ref.UserID == p.UserID
	}

	// Rule 6: default deny.
	return false
}

func canContent(p Principal, action Action, res *models.ContentResource, now time.Time) bool {
	// Abstract subject: editors may create content.
	if res == nil {
		return action == ActionCreate && p.ContentEditor
	}

	isOwner := res.OwnerUserID != 0 && res.OwnerUserID == p.UserID

	switch action {
	case ActionCreate:
		return p.ContentEditor
	case ActionUpdate, ActionDelete:
		// Editors manage their own resources; nobody else mutates.
		return p.ContentEditor && isOwner
	case ActionRead:
	default:
		return false
	}

	// Rule 2: unpublished or private content is visible only to its owner
	// or to editors.
	if res.State != models.ContentStatePublished || res.Visibility == models.ContentVisibilityPrivate {
		return isOwner || p.ContentEditor
	}

	// Rule 3: scheduled content stays locked for non-editors until its
	// start time; PendingOpenAccess covers the teaser view.
	if res.IsScheduledInFuture(now) && !p.ContentEditor {
		return false
	}

	// Rule 4: product-owned content requires a purchase or an entitling
	// org subscription. Content without an owning product is free to read
	// once it passed the gates above.
	if res.OwningProductID != nil {
		return p.ownsProduct(*res.OwningProductID) || p.subscribedToProduct(*res.OwningProductID)
	}
	return true
}

// CanPendingOpenAccess reports whether the principal may see the read-only
// "coming soon" form of a future-scheduled resource. It is a distinct
// grant, never full read access.
func CanPendingOpenAccess(p Principal, res *models.ContentResource, now time.Time) bool {
	if res == nil || !res.IsScheduledInFuture(now) {
		return false
	}
	if p.IsAdmin() || p.ContentEditor {
		return true
	}
	// The teaser follows the same visibility gates as a real read.
	if res.State != models.ContentStatePublished || res.Visibility == models.ContentVisibilityPrivate {
		return res.OwnerUserID != 0 && res.OwnerUserID == p.UserID
	}
	return true
}
