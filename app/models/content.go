package models

import "time"

const (
	ContentVisibilityPublic   = "public"
	ContentVisibilityPrivate  = "private"
	ContentVisibilityUnlisted = "unlisted"
)

const (
	ContentStateDraft     = "draft"
	ContentStatePublished = "published"
	ContentStateArchived  = "archived"
	ContentStateDeleted   = "deleted"
)

// ContentResource carries the per-resource metadata the policy resolver
// consumes. The actual lesson/video body lives outside this engine.
type ContentResource struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Slug             string     `gorm:"type:varchar(200);uniqueIndex" json:"slug"`
	Title            string     `gorm:"type:varchar(255);not null" json:"title"`
	Visibility       string     `gorm:"type:varchar(20);not null;default:'public';index" json:"visibility"`
	State            string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"state"`
	OwnerUserID      uint       `gorm:"not null;index" json:"owner_user_id"`
	OwningProductID  *uint      `gorm:"index" json:"owning_product_id,omitempty"`
	ScheduledStartAt *time.Time `gorm:"type:timestamp;default:null" json:"scheduled_start_at,omitempty"`
	ViewCount        uint64     `gorm:"not null;default:0" json:"view_count"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsScheduledInFuture reports whether the resource is gated behind a cohort
// or event start time that has not arrived yet.
func (r *ContentResource) IsScheduledInFuture(now time.Time) bool {
	return r.ScheduledStartAt != nil && r.ScheduledStartAt.After(now)
}
